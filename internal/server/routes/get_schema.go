package routes

import (
	"net/http"
	"sync"

	"github.com/FrameNetBrasil/daisy/pkg/daisy"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
)

var resultSchema = sync.OnceValue(func() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(&daisy.Result{})
})

// DisambiguateSchemaHandler describes the JSON returned by DisambiguateHandler.
func DisambiguateSchemaHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, resultSchema())
}
