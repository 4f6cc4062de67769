package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/iliyamo/youkebox/internal/model"
	"github.com/iliyamo/youkebox/internal/repository"
	"github.com/iliyamo/youkebox/internal/youtube"
)

type fakeVideos struct {
	queued map[string][]model.Video
	err    error
}

func (f *fakeVideos) Playlist(_ context.Context, room string) ([]model.Video, error) {
	return f.queued[room], f.err
}

func (f *fakeVideos) CreateMany(_ context.Context, room string, items []repository.NewVideo) ([]model.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	var r *string
	if room != "" {
		r = &room
	}
	out := make([]model.Video, 0, len(items))
	for _, it := range items {
		v := model.Video{
			ID: uint64(len(f.queued[room]) + 1), VideoID: it.VideoID, Title: it.Title,
			Description: it.Description, Duration: it.Duration, Room: r, AddedOn: time.Now(),
		}
		f.queued[room] = append(f.queued[room], v)
		out = append(out, v)
	}
	return out, nil
}

type fakeRooms struct {
	rooms []model.Room
	err   error
}

func (f *fakeRooms) List(_ context.Context, query string) ([]model.Room, error) {
	var out []model.Room
	for _, r := range f.rooms {
		if strings.Contains(r.Name, query) {
			out = append(out, r)
		}
	}
	return out, f.err
}

func (f *fakeRooms) Create(_ context.Context, name string) (*model.Room, error) {
	for _, r := range f.rooms {
		if r.Name == name {
			return nil, repository.ErrRoomExists
		}
	}
	r := model.Room{ID: uint64(len(f.rooms) + 1), Name: name}
	f.rooms = append(f.rooms, r)
	return &r, nil
}

func (f *fakeRooms) Exists(_ context.Context, name string) (bool, error) {
	for _, r := range f.rooms {
		if r.Name == name {
			return true, nil
		}
	}
	return false, f.err
}

type fakeCatalog struct {
	known  map[string]youtube.Video
	search []byte
	err    error
}

func (f *fakeCatalog) Search(context.Context, string) ([]byte, error) { return f.search, f.err }

func (f *fakeCatalog) Lookup(_ context.Context, ids []string) ([]youtube.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []youtube.Video
	for _, id := range ids {
		if v, ok := f.known[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeSupervisor struct {
	live    map[string]bool
	skipped []string
	added   []string
	err     error
}

func (f *fakeSupervisor) Skip(_ context.Context, room string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if !f.live[room] {
		return false, nil
	}
	f.skipped = append(f.skipped, room)
	return true, nil
}

func (f *fakeSupervisor) AddRoom(name string) (bool, error) {
	f.added = append(f.added, name)
	return true, nil
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPlaylistHandler(t *testing.T) {
	Convey("Given a playlist handler", t, func() {
		videos := &fakeVideos{queued: map[string][]model.Video{}}
		rooms := &fakeRooms{rooms: []model.Room{{ID: 1, Name: "lobby"}}}
		catalog := &fakeCatalog{known: map[string]youtube.Video{
			"abc": {ID: "abc", Title: "First", Duration: "PT3M"},
			"def": {ID: "def", Title: "Second", Description: "desc", Duration: "PT1M5S"},
		}}
		sup := &fakeSupervisor{live: map[string]bool{"lobby": true, "": true}}
		h := NewPlaylistHandler(videos, rooms, catalog, sup, quietLog())

		e := echo.New()
		e.GET("/v1/playlist/:room", h.Show)
		e.POST("/v1/playlist/:room", h.Add)
		e.POST("/v1/playlist/:room/skip", h.Skip)

		Convey("Add queues known ids in order and ignores unknown ones", func() {
			rec := do(e, http.MethodPost, "/v1/playlist/Lobby", `["abc", " ", "zzz", "def"]`)
			So(rec.Code, ShouldEqual, http.StatusCreated)
			So(videos.queued["lobby"], ShouldHaveLength, 2)
			So(videos.queued["lobby"][0].VideoID, ShouldEqual, "abc")
			So(videos.queued["lobby"][0].Description, ShouldBeNil)
			So(*videos.queued["lobby"][1].Description, ShouldEqual, "desc")

			rec = do(e, http.MethodGet, "/v1/playlist/lobby", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"video_id":"abc"`)
		})

		Convey("ffa names the queue without a room", func() {
			rec := do(e, http.MethodPost, "/v1/playlist/ffa", `["abc"]`)
			So(rec.Code, ShouldEqual, http.StatusCreated)
			So(videos.queued[""], ShouldHaveLength, 1)
			So(videos.queued[""][0].Room, ShouldBeNil)
		})

		Convey("Bad input is rejected", func() {
			So(do(e, http.MethodPost, "/v1/playlist/lobby", `{"id":"abc"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(e, http.MethodPost, "/v1/playlist/lobby", `[]`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(e, http.MethodPost, "/v1/playlist/lobby", `["zzz"]`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown rooms are 404", func() {
			So(do(e, http.MethodPost, "/v1/playlist/nowhere", `["abc"]`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A catalog outage is 502", func() {
			catalog.err = errors.New("down")
			So(do(e, http.MethodPost, "/v1/playlist/lobby", `["abc"]`).Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("Skip always answers 200", func() {
			rec := do(e, http.MethodPost, "/v1/playlist/LOBBY/skip", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"status":200`)
			So(sup.skipped, ShouldResemble, []string{"lobby"})

			rec = do(e, http.MethodPost, "/v1/playlist/unknown/skip", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(sup.skipped, ShouldHaveLength, 1)

			sup.err = errors.New("redis down")
			So(do(e, http.MethodPost, "/v1/playlist/lobby/skip", "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestRoomHandler(t *testing.T) {
	Convey("Given a room handler", t, func() {
		rooms := &fakeRooms{rooms: []model.Room{{ID: 1, Name: "jazz"}, {ID: 2, Name: "lobby"}}}
		sup := &fakeSupervisor{}
		h := NewRoomHandler(rooms, sup, quietLog())
		e := echo.New()
		e.GET("/v1/rooms", h.List)
		e.GET("/v1/rooms/search/:query", h.Search)
		e.POST("/v1/rooms", h.Create)

		Convey("List and Search", func() {
			rec := do(e, http.MethodGet, "/v1/rooms", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"jazz"`)
			So(rec.Body.String(), ShouldContainSubstring, `"lobby"`)

			rec = do(e, http.MethodGet, "/v1/rooms/search/JA", "")
			So(rec.Body.String(), ShouldContainSubstring, `"jazz"`)
			So(rec.Body.String(), ShouldNotContainSubstring, `"lobby"`)
		})

		Convey("Create stores the room and starts its worker", func() {
			rec := do(e, http.MethodPost, "/v1/rooms", `{"name":"  Rock "}`)
			So(rec.Code, ShouldEqual, http.StatusCreated)
			So(sup.added, ShouldResemble, []string{"rock"})
		})

		Convey("Duplicates and reserved names are rejected", func() {
			So(do(e, http.MethodPost, "/v1/rooms", `{"name":"jazz"}`).Code, ShouldEqual, http.StatusConflict)
			So(do(e, http.MethodPost, "/v1/rooms", `{"name":"ffa"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(e, http.MethodPost, "/v1/rooms", `{"name":""}`).Code, ShouldEqual, http.StatusBadRequest)
			So(sup.added, ShouldBeEmpty)
		})
	})
}

func TestYouTubeHandler(t *testing.T) {
	Convey("Search passes the catalog JSON through", t, func() {
		catalog := &fakeCatalog{search: []byte(`{"items":[]}`)}
		e := echo.New()
		e.GET("/v1/youtube/:query", NewYouTubeHandler(catalog, quietLog()).Search)

		rec := do(e, http.MethodGet, "/v1/youtube/lofi", "")
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Body.String(), ShouldEqual, `{"items":[]}`)

		catalog.err = errors.New("quota")
		So(do(e, http.MethodGet, "/v1/youtube/lofi", "").Code, ShouldEqual, http.StatusBadGateway)
	})
}

func TestRoomParam(t *testing.T) {
	Convey("roomParam", t, func() {
		So(roomParam("FFA"), ShouldEqual, "")
		So(roomParam("Jazz%20Bar"), ShouldEqual, "jazz bar")
		So(roomParam("lobby"), ShouldEqual, "lobby")
	})
}
