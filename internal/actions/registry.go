package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrUnknownAction = errors.New("unknown action")

type Name string

const (
	ResetPassword  Name = "reset_password"
	ClearCache     Name = "clear_cache"
	RestartService Name = "restart_service"
	GetLogs        Name = "get_logs"
	HealthCheck    Name = "health_check"
)

// Handler performs one privileged action. Failures are reported through Result, never
// through a returned error or a panic.
type Handler func(ctx context.Context, actx Context, params Params) Result

type Definition struct {
	Name         Name
	Description  string
	ParamsSchema string
	Handler      Handler

	schema *gojsonschema.Schema
}

// Validate checks params against the action's schema. Nil params validate as an
// empty object.
func (d Definition) Validate(params Params) error {
	if d.schema == nil {
		return nil
	}
	document := map[string]any(params)
	if document == nil {
		document = map[string]any{}
	}
	result, err := d.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("validate params: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, item := range result.Errors() {
		problems = append(problems, item.String())
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}

// Registry is the closed set of actions the assistant may request. It is built once
// and read-only afterwards.
type Registry struct {
	definitions map[Name]Definition
}

func NewRegistry(toolkit Toolkit) *Registry {
	toolkit = toolkit.withDefaults()
	return newRegistry(
		Definition{
			Name:         ResetPassword,
			Description:  "Envía un enlace de restablecimiento de contraseña al usuario.",
			ParamsSchema: resetPasswordSchema,
			Handler:      toolkit.resetPassword,
		},
		Definition{
			Name:         ClearCache,
			Description:  "Purga la caché de Vercel del proyecto.",
			ParamsSchema: emptyParamsSchema,
			Handler:      toolkit.clearCache,
		},
		Definition{
			Name:         RestartService,
			Description:  "Redespliega la última versión publicada del proyecto.",
			ParamsSchema: emptyParamsSchema,
			Handler:      toolkit.restartService,
		},
		Definition{
			Name:         GetLogs,
			Description:  "Obtiene los errores recientes del despliegue (últimos 5 minutos).",
			ParamsSchema: getLogsSchema,
			Handler:      toolkit.getLogs,
		},
		Definition{
			Name:         HealthCheck,
			Description:  "Comprueba la base de datos, el sitio publicado y el estado del despliegue.",
			ParamsSchema: emptyParamsSchema,
			Handler:      toolkit.healthCheck,
		},
	)
}

func newRegistry(definitions ...Definition) *Registry {
	indexed := make(map[Name]Definition, len(definitions))
	for _, definition := range definitions {
		key := Normalize(string(definition.Name))
		if key == "" || definition.Handler == nil {
			continue
		}
		definition.Name = key
		if strings.TrimSpace(definition.ParamsSchema) != "" {
			definition.schema = mustCompileSchema(key, definition.ParamsSchema)
		}
		indexed[key] = definition
	}
	return &Registry{definitions: indexed}
}

func mustCompileSchema(name Name, raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile params schema for %s: %v", name, err))
	}
	return schema
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	definition, ok := r.definitions[Normalize(name)]
	return definition, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

func (r *Registry) Names() []Name {
	if r == nil {
		return nil
	}
	names := make([]Name, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (r *Registry) Definitions() []Definition {
	names := r.Names()
	definitions := make([]Definition, 0, len(names))
	for _, name := range names {
		definitions = append(definitions, r.definitions[name])
	}
	return definitions
}

func Normalize(value string) Name {
	return Name(strings.ToLower(strings.TrimSpace(value)))
}

const emptyParamsSchema = `{"type": "object"}`

const resetPasswordSchema = `{
	"type": "object",
	"properties": {
		"email": {"type": "string", "minLength": 3},
		"user_id": {"type": "string", "minLength": 1},
		"userId": {"type": "string", "minLength": 1}
	}
}`

const getLogsSchema = `{
	"type": "object",
	"properties": {
		"limit": {
			"anyOf": [
				{"type": "integer", "minimum": 1},
				{"type": "string", "pattern": "^[0-9]+$"}
			]
		},
		"value": {
			"anyOf": [
				{"type": "integer", "minimum": 1},
				{"type": "string"}
			]
		}
	}
}`
