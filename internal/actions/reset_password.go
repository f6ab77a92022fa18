package actions

import (
	"context"
	"strings"
)

func (t Toolkit) resetPassword(ctx context.Context, actx Context, params Params) Result {
	if t.Identity == nil {
		return failed("El proveedor de identidad no está configurado.")
	}
	email, problem := t.resolveResetEmail(ctx, actx, params)
	if problem != "" {
		return failed(problem)
	}
	if err := t.Identity.SendPasswordReset(ctx, email); err != nil {
		return failed(err.Error())
	}
	return succeeded(
		"Se envió un enlace de restablecimiento de contraseña a "+email,
		map[string]any{"email": email},
	)
}

// resolveResetEmail prefers an explicit address, then a named user. The requester is only
// used when params name no target; a named target that does not resolve is a failure.
func (t Toolkit) resolveResetEmail(ctx context.Context, actx Context, params Params) (string, string) {
	if email := params.String("email"); email != "" {
		if !strings.Contains(email, "@") {
			return "", "El email indicado no es válido: " + email
		}
		return strings.ToLower(email), ""
	}
	value := params.String("value")
	if strings.Contains(value, "@") {
		return strings.ToLower(value), ""
	}

	userID := ""
	for _, candidate := range []string{params.String("user_id"), params.String("userId"), value} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			userID = candidate
			break
		}
	}
	named := userID != ""
	if !named {
		userID = strings.TrimSpace(actx.RequesterID)
	}
	if userID == "" || t.Profiles == nil {
		return "", noResetEmailMessage
	}
	email, err := t.Profiles.LookupProfileEmail(ctx, userID)
	if err != nil || strings.TrimSpace(email) == "" {
		if named {
			return "", "No se encontró un email para el usuario " + userID + "."
		}
		return "", noResetEmailMessage
	}
	return strings.TrimSpace(email), ""
}

const noResetEmailMessage = "No se encontró un email para enviar el restablecimiento de contraseña."
