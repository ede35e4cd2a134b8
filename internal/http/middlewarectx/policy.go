package middlewarectx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-core/internal/http/response"
	"github.com/magabrotheeeer/entitlement-core/internal/metrics"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

// Access - вид политики доступа маршрута.
type Access int

const (
	accessUnset Access = iota
	// AccessPublic - идентичность не требуется.
	AccessPublic
	// AccessAuthenticated - нужен любой аутентифицированный принципал.
	AccessAuthenticated
	// AccessRole - нужен принципал с заданной ролью.
	AccessRole
)

// ErrInvalidPolicy возвращается при проверке незаданной или некорректной политики.
var ErrInvalidPolicy = errors.New("invalid access policy")

// Policy - политика доступа маршрута. Нулевое значение некорректно,
// политики создаются через Public, Authenticated и RoleRequired.
type Policy struct {
	access Access
	role   models.Role
}

// Public разрешает анонимный доступ.
func Public() Policy { return Policy{access: AccessPublic} }

// Authenticated требует любого аутентифицированного принципала.
func Authenticated() Policy { return Policy{access: AccessAuthenticated} }

// RoleRequired требует принципала с ролью role.
func RoleRequired(role models.Role) Policy { return Policy{access: AccessRole, role: role} }

// Access возвращает вид политики.
func (p Policy) Access() Access { return p.access }

// Role возвращает требуемую роль для AccessRole.
func (p Policy) Role() models.Role { return p.role }

// Validate проверяет, что политика задана и относится к закрытому набору.
func (p Policy) Validate() error {
	switch p.access {
	case AccessPublic, AccessAuthenticated:
		if p.role != "" {
			return fmt.Errorf("%w: role %q on %s policy", ErrInvalidPolicy, p.role, p)
		}
		return nil
	case AccessRole:
		if !p.role.Valid() {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidPolicy, p.role)
		}
		return nil
	default:
		return fmt.Errorf("%w: unset", ErrInvalidPolicy)
	}
}

func (p Policy) String() string {
	switch p.access {
	case AccessPublic:
		return "Public"
	case AccessAuthenticated:
		return "Authenticated"
	case AccessRole:
		return "RoleRequired(" + string(p.role) + ")"
	default:
		return "Unset"
	}
}

// Decide возвращает HTTP-статус отказа для принципала или 0, если доступ разрешён.
func (p Policy) Decide(principal models.Principal, authenticated bool) int {
	switch p.access {
	case AccessPublic:
		return 0
	case AccessAuthenticated:
		if !authenticated {
			return http.StatusUnauthorized
		}
		return 0
	case AccessRole:
		if !authenticated {
			return http.StatusUnauthorized
		}
		if principal.Role != p.role {
			return http.StatusForbidden
		}
		return 0
	default:
		return http.StatusInternalServerError
	}
}

// Require применяет политику к маршруту. Отказ всегда явный: 401 без идентичности,
// 403 при неподходящей роли.
func Require(log *slog.Logger, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			status := p.Decide(principal, ok)
			if status == 0 {
				next.ServeHTTP(w, r)
				return
			}

			log.Info("access denied",
				slog.String("op", "middlewarectx.Require"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("policy", p.String()),
				slog.Int("status", status),
			)
			metrics.PolicyRejections.WithLabelValues(http.StatusText(status)).Inc()

			msg := response.MsgInternal
			switch status {
			case http.StatusUnauthorized:
				msg = response.MsgAuthRequired
			case http.StatusForbidden:
				msg = response.MsgForbidden
			}
			render.Status(r, status)
			render.JSON(w, r, response.Error(msg))
		})
	}
}
