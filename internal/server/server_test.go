package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"xclone/internal/config"
	"xclone/internal/models"
	"xclone/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	dsn := "file:srv_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.PostLike{}, &models.Retweet{}))

	cfg := &config.Config{
		Env:                "test",
		UploadDir:          t.TempDir(),
		MediaMaxFileSizeMB: 1,
	}
	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return s, s.NewApp()
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_FeedScenario(t *testing.T) {
	_, app := setupTestServer(t)

	var p models.Post
	require.Equal(t, http.StatusCreated, doJSON(t, app, http.MethodPost, "/api/posts",
		map[string]string{"username": "a", "content": "hello"}, &p))

	var like service.LikeResult
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/api/posts/"+itoa(p.ID)+"/like",
		map[string]string{"username": "b"}, &like))
	assert.True(t, like.Liked)
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/api/posts/"+itoa(p.ID)+"/like",
		map[string]string{"username": "c"}, &like))
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/api/posts/"+itoa(p.ID)+"/like",
		map[string]string{"username": "b"}, &like))
	assert.False(t, like.Liked)

	var rt service.RetweetResult
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodPost, "/api/posts/"+itoa(p.ID)+"/retweet",
		map[string]string{"username": "d"}, &rt))
	assert.True(t, rt.Retweeted)

	var reply models.Post
	require.Equal(t, http.StatusCreated, doJSON(t, app, http.MethodPost, "/api/posts/"+itoa(p.ID)+"/reply",
		map[string]string{"username": "c", "content": "nice"}, &reply))

	var got models.Post
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/api/posts/"+itoa(p.ID), nil, &got))
	assert.Equal(t, 1, got.LikesCount)
	assert.Equal(t, 1, got.RetweetsCount)
	assert.Equal(t, 1, got.RepliesCount)

	var counted models.PostWithInteractions
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/api/posts/"+itoa(p.ID)+"/with-interactions", nil, &counted))
	assert.Equal(t, int64(1), counted.Likes)
	assert.Equal(t, int64(1), counted.Retweets)
	assert.Equal(t, int64(1), counted.Replies)

	var feed []models.Post
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/api/posts?username=c", nil, &feed))
	require.Len(t, feed, 2)
	assert.True(t, feed[0].IsRetweet)
	assert.True(t, feed[1].ViewerHasLiked)

	var apiErr models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, doJSON(t, app, http.MethodPost, "/api/posts/999/like",
		map[string]string{"username": "b"}, &apiErr))
	assert.Equal(t, models.CodeNotFound, apiErr.Code)
}

func TestServer_UploadAndServeMedia(t *testing.T) {
	s, app := setupTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("username", "alice"))
	part, err := w.CreateFormFile("media", "pic.png")
	require.NoError(t, err)
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	_, _ = part.Write(png)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var post models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	require.Len(t, post.Media, 1)
	require.NotNil(t, post.MediaKind)
	assert.Equal(t, models.MediaKindImage, *post.MediaKind)

	entries, err := os.ReadDir(s.media.UploadDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	get, err := app.Test(httptest.NewRequest(http.MethodGet, post.Media[0].URL, nil), -1)
	require.NoError(t, err)
	defer func() { _ = get.Body.Close() }()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestServer_TooManyFilesStoresNothing(t *testing.T) {
	s, app := setupTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("username", "alice"))
	for i := 0; i < 5; i++ {
		part, err := w.CreateFormFile("media", "pic.png")
		require.NoError(t, err)
		_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	entries, _ := os.ReadDir(s.media.UploadDir())
	assert.Empty(t, entries)
}

func TestServer_HealthEndpoints(t *testing.T) {
	_, app := setupTestServer(t)

	var health map[string]interface{}
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/api/health", nil, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "connected", health["database"])
	assert.Equal(t, Version, health["version"])

	var ready map[string]interface{}
	require.Equal(t, http.StatusOK, doJSON(t, app, http.MethodGet, "/health/ready", nil, &ready))
	checks := ready["checks"].(map[string]interface{})
	assert.Equal(t, "disabled", checks["redis"])

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	_, app := setupTestServer(t)

	var apiErr models.ErrorResponse
	assert.Equal(t, http.StatusUpgradeRequired, doJSON(t, app, http.MethodGet, "/api/ws/feed", nil, &apiErr))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
