package handlers

import (
	"context"
	"net/url"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resource implements list, read, create, update and delete for one entity type.
type Resource[T any] struct {
	Repo    store.Repository[T]
	Builder query.Builder
	// Parents maps a route parameter to the field it scopes, e.g. "tourId" to "tour".
	Parents map[string]string
	// Create builds a new document from the request.
	Create func(c *fiber.Ctx) (T, error)
	// Update builds the $set document for the document with the given id.
	Update func(c *fiber.Ctx, id primitive.ObjectID) (bson.M, error)
	// AfterWrite runs after every successful create, update and delete.
	AfterWrite func(ctx context.Context, doc T) error
}

// GetAll runs the query pipeline over the request's query string, scoped to the parent in the
// path when there is one.
func (r Resource[T]) GetAll(c *fiber.Ctx) error {
	q, err := r.Builder.Build(queryValues(c))
	if err != nil {
		return err
	}
	for param, field := range r.Parents {
		raw := c.Params(param)
		if raw == "" {
			continue
		}
		id, err := store.ParseID(raw)
		if err != nil {
			return err
		}
		q = q.Where(field, id)
	}

	docs, err := r.Repo.Find(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"results": len(docs),
		"data":    fiber.Map{"data": docs},
	})
}

func (r Resource[T]) GetOne(c *fiber.Ctx) error {
	id, err := store.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	doc, err := r.Repo.FindByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, doc)
}

func (r Resource[T]) CreateOne(c *fiber.Ctx) error {
	doc, err := r.Create(c)
	if err != nil {
		return err
	}
	created, err := r.Repo.Create(c.UserContext(), doc)
	if err != nil {
		return err
	}
	if err := r.afterWrite(c, created); err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, created)
}

func (r Resource[T]) UpdateOne(c *fiber.Ctx) error {
	id, err := store.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	set, err := r.Update(c, id)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return apperror.Validation("No updatable fields provided.")
	}
	updated, err := r.Repo.UpdateByID(c.UserContext(), id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if err := r.afterWrite(c, updated); err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, updated)
}

func (r Resource[T]) DeleteOne(c *fiber.Ctx) error {
	id, err := store.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	deleted, err := r.Repo.DeleteByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if err := r.afterWrite(c, deleted); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (r Resource[T]) afterWrite(c *fiber.Ctx, doc T) error {
	if r.AfterWrite == nil {
		return nil
	}
	return r.AfterWrite(c.UserContext(), doc)
}

func sendData(c *fiber.Ctx, status int, doc any) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"data": doc},
	})
}

// queryValues keeps repeated parameters, which c.Queries would collapse.
func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		values.Add(string(k), string(v))
	})
	return values
}

// parseBody decodes the request body into v, mapping syntax errors to a client error.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return apperror.Wrap(err, apperror.KindValidation, fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}
