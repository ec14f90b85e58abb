// Package docs registra a documentação OpenAPI servida em /swagger/.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var doc string

type openAPIDoc struct{}

func (openAPIDoc) ReadDoc() string { return doc }

func init() {
	swag.Register(swag.Name, openAPIDoc{})
}
