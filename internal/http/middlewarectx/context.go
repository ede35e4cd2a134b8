package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

type principalKey struct{}

// WithPrincipal кладёт аутентифицированного принципала в контекст запроса.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext возвращает принципала запроса. false означает анонимный запрос.
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	if !ok || p.ID == "" {
		return models.Principal{}, false
	}
	return p, true
}
