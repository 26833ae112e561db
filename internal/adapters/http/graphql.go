package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// pinObject flattens a PinView for graphql-go, whose default resolver does
// not descend into embedded structs.
func pinObject(v *domain.PinView) map[string]interface{} {
	confirmers := make([]map[string]interface{}, len(v.ConfirmedBy))
	for i, c := range v.ConfirmedBy {
		confirmers[i] = map[string]interface{}{"id": c.UserID, "username": c.Username}
	}
	var rating interface{}
	if v.Rating != nil {
		rating = *v.Rating
	}
	var owner interface{}
	if v.OwnerID != nil {
		owner = *v.OwnerID
	}
	return map[string]interface{}{
		"id":                  v.ID,
		"title":               v.Title,
		"description":         v.Description,
		"category":            v.Category,
		"lat":                 v.Lat,
		"lng":                 v.Lng,
		"tags":                v.Tags,
		"rating":              rating,
		"images":              v.Images,
		"is_public":           v.IsPublic,
		"status":              string(v.Status),
		"created_by":          owner,
		"created_at":          v.CreatedAt.Format(time.RFC3339),
		"confirmations_count": v.ConfirmationsCount,
		"color":               string(v.Color),
		"user_confirmed":      v.UserConfirmed,
		"confirmed_by":        confirmers,
	}
}

// buildSchema creates the GraphQL schema wired to the pin service. Resolvers
// act as the actor AuthMiddleware put into the request context.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	confirmerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Confirmer",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"username": &graphql.Field{Type: graphql.String},
		},
	})

	pinType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pin",
		Fields: graphql.Fields{
			"id":                  &graphql.Field{Type: graphql.String},
			"title":               &graphql.Field{Type: graphql.String},
			"description":         &graphql.Field{Type: graphql.String},
			"category":            &graphql.Field{Type: graphql.String},
			"lat":                 &graphql.Field{Type: graphql.Float},
			"lng":                 &graphql.Field{Type: graphql.Float},
			"tags":                &graphql.Field{Type: graphql.NewList(graphql.String)},
			"rating":              &graphql.Field{Type: graphql.Float},
			"images":              &graphql.Field{Type: graphql.NewList(graphql.String)},
			"is_public":           &graphql.Field{Type: graphql.Boolean},
			"status":              &graphql.Field{Type: graphql.String},
			"created_by":          &graphql.Field{Type: graphql.String},
			"created_at":          &graphql.Field{Type: graphql.String},
			"confirmations_count": &graphql.Field{Type: graphql.Int},
			"color":               &graphql.Field{Type: graphql.String},
			"user_confirmed":      &graphql.Field{Type: graphql.Boolean},
			"confirmed_by":        &graphql.Field{Type: graphql.NewList(confirmerType)},
		},
	})

	pinArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"pins": &graphql.Field{
				Type:        graphql.NewList(pinType),
				Description: "Pins visible to the caller",
				Args: graphql.FieldConfigArgument{
					"in_bbox":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"status":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"search":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"category":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"min_rating": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"offset":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: domain.DefaultListLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					params := domain.ListParams{
						BBox:      p.Args["in_bbox"].(string),
						Status:    p.Args["status"].(string),
						Search:    p.Args["search"].(string),
						Category:  p.Args["category"].(string),
						MinRating: p.Args["min_rating"].(string),
						Offset:    p.Args["offset"].(int),
						Limit:     p.Args["limit"].(int),
					}
					views, _, err := deps.Pins.List(p.Context, ActorFromCtx(p.Context), params)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(views))
					for i := range views {
						out[i] = pinObject(&views[i])
					}
					return out, nil
				},
			},
			"pin": &graphql.Field{
				Type:        pinType,
				Description: "Get a pin by ID",
				Args:        pinArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Pins.Get(p.Context, ActorFromCtx(p.Context), p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return pinObject(v), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"confirmPin": &graphql.Field{
				Type:        pinType,
				Description: "Confirm a pin as the current user",
				Args:        pinArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Pins.Confirm(p.Context, ActorFromCtx(p.Context), p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return pinObject(v), nil
				},
			},
			"retractPin": &graphql.Field{
				Type:        pinType,
				Description: "Withdraw the current user's confirmation",
				Args:        pinArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Pins.Retract(p.Context, ActorFromCtx(p.Context), p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return pinObject(v), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Debug("graphql errors", "errors", result.Errors)
		}

		c.Set(fiber.HeaderCacheControl, "private, no-store")
		return c.JSON(result)
	}
}
