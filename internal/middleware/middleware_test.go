package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/iliyamo/youkebox/internal/config"
	"github.com/iliyamo/youkebox/internal/utils"
)

const secret = "test-secret"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	Convey("Given a route guarded by JWTAuth and RequireRole(HOST)", t, func() {
		e := echo.New()
		e.GET("/me", func(c echo.Context) error {
			id, _ := UserID(c)
			return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
		}, JWTAuth(secret))
		e.POST("/rooms", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
			JWTAuth(secret), RequireRole("HOST"))

		host, err := utils.NewAccessToken(secret, 7, "HOST", 5)
		So(err, ShouldBeNil)
		listener, err := utils.NewAccessToken(secret, 8, "LISTENER", 5)
		So(err, ShouldBeNil)

		Convey("A missing token is rejected", func() {
			So(serve(e, http.MethodGet, "/me", "").Code, ShouldEqual, http.StatusUnauthorized)
		})
		Convey("A token signed with another secret is rejected", func() {
			other, _ := utils.NewAccessToken("other", 7, "HOST", 5)
			So(serve(e, http.MethodGet, "/me", other.Token).Code, ShouldEqual, http.StatusUnauthorized)
		})
		Convey("A valid token exposes the caller", func() {
			rec := serve(e, http.MethodGet, "/me", host.Token)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"id":7`)
			So(rec.Body.String(), ShouldContainSubstring, `"role":"HOST"`)
		})
		Convey("Roles are enforced", func() {
			So(serve(e, http.MethodPost, "/rooms", host.Token).Code, ShouldEqual, http.StatusCreated)
			So(serve(e, http.MethodPost, "/rooms", listener.Token).Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestTokenBucket(t *testing.T) {
	Convey("Given a bucket of two tokens refilled once a minute", t, func() {
		_, rdb := newRedis(t)
		cfg := config.RateLimitConfig{
			Enabled: true, Capacity: 2, RefillTokens: 1,
			RefillInterval: time.Minute, TTL: 10 * time.Minute, Prefix: "test:rl",
		}
		e := echo.New()
		e.Use(NewTokenBucket(cfg, rdb, quietLog()))
		e.GET("/rooms", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

		Convey("The third request is throttled", func() {
			So(serve(e, http.MethodGet, "/rooms", "").Code, ShouldEqual, http.StatusOK)
			rec := serve(e, http.MethodGet, "/rooms", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("X-RateLimit-Remaining"), ShouldEqual, "0")

			rec = serve(e, http.MethodGet, "/rooms", "")
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			So(rec.Header().Get("Retry-After"), ShouldNotBeEmpty)
		})
	})

	Convey("A disabled limiter passes everything through", t, func() {
		e := echo.New()
		e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, quietLog()))
		e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
		for i := 0; i < 5; i++ {
			So(serve(e, http.MethodGet, "/", "").Code, ShouldEqual, http.StatusOK)
		}
	})
}

func TestRedisCache(t *testing.T) {
	Convey("Given a cached search route", t, func() {
		_, rdb := newRedis(t)
		cfg := config.CacheConfig{
			Enabled: true, Methods: map[string]bool{"GET": true},
			TTL: time.Minute, Prefix: "test:cache", MaxBodyBytes: 1 << 10,
		}
		calls := 0
		e := echo.New()
		e.GET("/search/:query", func(c echo.Context) error {
			calls++
			return c.JSON(http.StatusOK, echo.Map{"q": c.Param("query")})
		}, NewRedisCache(cfg, rdb))

		Convey("The second identical request is served from Redis", func() {
			first := serve(e, http.MethodGet, "/search/jazz", "")
			So(first.Header().Get("X-Cache"), ShouldEqual, "MISS")
			second := serve(e, http.MethodGet, "/search/jazz", "")
			So(second.Header().Get("X-Cache"), ShouldEqual, "HIT")
			So(second.Body.String(), ShouldEqual, first.Body.String())
			So(second.Header().Get(echo.HeaderContentType), ShouldStartWith, "application/json")
			So(calls, ShouldEqual, 1)
		})

		Convey("Different path params are cached separately", func() {
			serve(e, http.MethodGet, "/search/jazz", "")
			rec := serve(e, http.MethodGet, "/search/rock", "")
			So(rec.Header().Get("X-Cache"), ShouldEqual, "MISS")
			So(calls, ShouldEqual, 2)
		})
	})
}

func TestPayloadCodec(t *testing.T) {
	Convey("decodePayload rejects truncated input", t, func() {
		bs, err := encodePayload(200, http.Header{"A": {"b"}}, []byte("body"))
		So(err, ShouldBeNil)
		_, _, _, ok := decodePayload(bs[:10])
		So(ok, ShouldBeFalse)
		status, hdr, body, ok := decodePayload(bs)
		So(ok, ShouldBeTrue)
		So(status, ShouldEqual, 200)
		So(hdr.Get("A"), ShouldEqual, "b")
		So(string(body), ShouldEqual, "body")
	})
}
