package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var devKey = []byte("test-signing-key")

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(devKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string, verify echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/signatures/abc", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(verify)(c)
}

func TestJWTMiddlewareValidToken(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: devKey})
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "rad-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  "Dr. Okafor",
		Roles: []string{"radiologist"},
	})

	var gotID, gotName string
	var gotRoles []string
	_, err := doRequest(t, mw, "Bearer "+token, func(c echo.Context) error {
		ctx := c.Request().Context()
		gotID = UserIDFromContext(ctx)
		gotName = UserNameFromContext(ctx)
		gotRoles = RolesFromContext(ctx)
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if gotID != "rad-42" || gotName != "Dr. Okafor" {
		t.Errorf("identity = %s/%s", gotID, gotName)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "radiologist" {
		t.Errorf("roles = %v", gotRoles)
	}
}

func TestJWTMiddlewareRejections(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: devKey})
	reject := func(c echo.Context) error {
		t.Error("handler should not run")
		return nil
	}

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage token":  "Bearer not.a.token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := doRequest(t, mw, header, reject)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusUnauthorized {
				t.Fatalf("err = %v, want 401", err)
			}
		})
	}
}

func TestJWTMiddlewareExpiredToken(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: devKey})
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "rad-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	_, err := doRequest(t, mw, "Bearer "+token, func(c echo.Context) error {
		t.Error("handler should not run")
		return nil
	})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestRequireRole(t *testing.T) {
	run := func(ctx context.Context, roles ...string) error {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		return RequireRole(roles...)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})(c)
	}

	base := context.Background()

	if err := run(WithIdentity(base, "u1", "", []string{"radiologist"}), "radiologist"); err != nil {
		t.Errorf("matching role rejected: %v", err)
	}
	if err := run(WithIdentity(base, "u1", "", []string{"admin"}), "compliance"); err != nil {
		t.Errorf("admin rejected: %v", err)
	}
	if err := run(WithIdentity(base, "u1", "", []string{"clerk"}), "radiologist"); err == nil {
		t.Error("missing role accepted")
	}
	if err := run(WithBreakGlass(WithIdentity(base, "u1", "", nil)), "radiologist"); err != nil {
		t.Errorf("break-glass override rejected: %v", err)
	}
}
