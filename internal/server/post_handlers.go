package server

import (
	"io"
	"mime/multipart"
	"strings"

	"xclone/internal/models"
	"xclone/internal/service"

	"github.com/gofiber/fiber/v2"
)

// mediaField is the multipart field attachments are sent in.
const mediaField = "media"

type createPostRequest struct {
	Username string `json:"username" form:"username"`
	Content  string `json:"content" form:"content"`
}

type interactionRequest struct {
	Username string `json:"username"`
}

type replyRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// GetFeed godoc
// @Summary List the feed
// @Description Top-level posts and retweets, newest first, with the viewer's like and retweet flags
// @Tags posts
// @Produce json
// @Param username query string false "Viewer username"
// @Success 200 {array} models.Post
// @Failure 503 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.posts.ListFeed(c.UserContext(), c.Query("username"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost godoc
// @Summary Create a post
// @Description Multipart form with username, optional content and up to 4 image or video files in "media". A JSON body without media is accepted too.
// @Tags posts
// @Accept mpfd,json
// @Produce json
// @Param username formData string true "Author"
// @Param content formData string false "Text"
// @Param media formData file false "Attachment (repeat up to 4 times)"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	var files []*multipart.FileHeader

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		req.Username = firstValue(form.Value["username"])
		req.Content = firstValue(form.Value["content"])
		files = form.File[mediaField]
	} else if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.posts.CreatePost(c.UserContext(), service.CreatePostInput{
		Username: req.Username,
		Content:  req.Content,
		Files:    uploadedFiles(files),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishPostCreated(c.UserContext(), post)
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost godoc
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.posts.GetPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// GetPostWithInteractions godoc
// @Summary Get a post with live interaction counts
// @Description likes, retweets and replies are counted from the ledger rows, not the stored counters
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostWithInteractions
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/with-interactions [get]
func (s *Server) GetPostWithInteractions(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.posts.GetPostWithInteractions(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// ToggleLike godoc
// @Summary Like or unlike a post
// @Tags interactions
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param body body interactionRequest true "Acting user"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req interactionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.interactions.ToggleLike(c.UserContext(), service.InteractionInput{PostID: id, Username: req.Username})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishLike(c.UserContext(), id, strings.TrimSpace(req.Username), res)
	return c.JSON(res)
}

// ToggleRetweet godoc
// @Summary Retweet or un-retweet a post
// @Description Retweeting also adds a derived post by the acting user to the feed; un-retweeting removes it
// @Tags interactions
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param body body interactionRequest true "Acting user"
// @Success 200 {object} service.RetweetResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/retweet [post]
func (s *Server) ToggleRetweet(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req interactionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.interactions.ToggleRetweet(c.UserContext(), service.InteractionInput{PostID: id, Username: req.Username})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishRetweet(c.UserContext(), id, strings.TrimSpace(req.Username), res)
	return c.JSON(res)
}

// Reply godoc
// @Summary Reply to a post
// @Tags interactions
// @Accept json
// @Produce json
// @Param id path int true "Parent post ID"
// @Param body body replyRequest true "Reply"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/reply [post]
func (s *Server) Reply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	reply, err := s.interactions.Reply(c.UserContext(), service.ReplyInput{
		ParentID: id,
		Username: req.Username,
		Content:  req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishReply(c.UserContext(), reply)
	return c.Status(fiber.StatusCreated).JSON(reply)
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func uploadedFiles(headers []*multipart.FileHeader) []service.UploadedFile {
	files := make([]service.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.UploadedFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files
}
