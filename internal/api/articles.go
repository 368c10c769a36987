package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/auth"
	"github.com/JakeFAU/magazine-cms/internal/cache"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/metrics"
	"github.com/JakeFAU/magazine-cms/internal/validation"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
	multipartMemory  = 1 << 20
)

var (
	errImageTooLarge = errors.New("image exceeds upload limit")
	errNotAnImage    = errors.New("only image uploads are accepted")
)

// articleFields holds the form or JSON fields present on a write request.
type articleFields map[string]string

type imageUpload struct {
	file        multipart.File
	filename    string
	contentType string
	size        int64
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	gen := s.deps.Cache.Generation()
	if cached, ok := s.deps.Cache.Get(cache.AllArticlesKey); ok {
		if articles, ok := cached.([]content.Article); ok {
			s.writeJSON(w, http.StatusOK, articles)
			return
		}
	}
	articles, err := s.deps.Articles.ListArticles(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch articles", err)
		return
	}
	if articles == nil {
		articles = []content.Article{}
	}
	s.deps.Cache.SetIfCurrent(gen, cache.AllArticlesKey, articles)
	s.writeJSON(w, http.StatusOK, articles)
}

func (s *Server) latestArticles(w http.ResponseWriter, r *http.Request) {
	page, err := positiveQuery(r, "page", 1)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "page must be a positive integer", err)
		return
	}
	limit, err := positiveQuery(r, "limit", defaultPageLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page-1 > math.MaxInt/limit {
		s.writeError(w, http.StatusBadRequest, "page is out of range", nil)
		return
	}

	key := cache.PageKey(page, limit)
	gen := s.deps.Cache.Generation()
	if cached, ok := s.deps.Cache.Get(key); ok {
		if p, ok := cached.(content.Page); ok {
			s.writeJSON(w, http.StatusOK, p)
			return
		}
	}
	articles, total, err := s.deps.Articles.ListArticlesPage(r.Context(), (page-1)*limit, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, content.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, "Failed to fetch articles", err)
		return
	}
	p := content.NewPage(articles, total, page, limit)
	s.deps.Cache.SetIfCurrent(gen, key, p)
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.Responder.Respond(r.Context(), chi.URLParam(r, "id"), r.UserAgent())
	if err != nil {
		s.writeArticleError(w, resp, err)
		return
	}
	if err := resp.Send(w); err != nil {
		s.logger.Warn("write article response failed", zap.Error(err))
	}
}

func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	fields, upload, err := s.readArticleRequest(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}
	defer closeUpload(upload)

	in := content.NewArticle{
		Title:   fields["title"],
		Content: fields["content"],
		Excerpt: fields["excerpt"],
		Author:  fields["author"],
	}
	if raw := fields["category_id"]; raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "category_id must be an integer", err)
			return
		}
		in.CategoryID = id
	}
	if err := validation.Struct(in); err != nil {
		s.writeError(w, http.StatusBadRequest, "Title, content and category are required", err)
		return
	}

	ctx := r.Context()
	if upload != nil {
		in.ImageURL, in.ImagePath, err = s.storeImage(ctx, upload)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to upload image", err)
			return
		}
	}
	in.CreatedAt = s.deps.Clock.Now()

	article, err := s.deps.Articles.CreateArticle(ctx, in)
	if err != nil {
		s.discardImage(ctx, in.ImagePath)
		s.writeStoreError(w, "Failed to create article", err)
		return
	}
	s.deps.Cache.InvalidateAggregates()
	s.publish(ctx, content.EventArticleCreated, article)
	s.writeJSON(w, http.StatusCreated, article)
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Article not found", nil)
		return
	}
	fields, upload, err := s.readArticleRequest(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}
	defer closeUpload(upload)

	in, err := articleUpdate(fields)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "category_id must be an integer", err)
		return
	}
	if err := validation.Struct(in); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid article fields", err)
		return
	}
	if in.Empty() && upload == nil {
		s.writeError(w, http.StatusBadRequest, "No fields to update", nil)
		return
	}

	ctx := r.Context()
	existing, err := s.deps.Articles.GetArticle(ctx, id)
	if err != nil {
		s.writeStoreError(w, "Failed to update article", err)
		return
	}
	if upload != nil {
		imageURL, imagePath, err := s.storeImage(ctx, upload)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to upload image", err)
			return
		}
		in.ImageURL, in.ImagePath = &imageURL, &imagePath
	}
	in.UpdatedAt = s.deps.Clock.Now()

	article, err := s.deps.Articles.UpdateArticle(ctx, id, in)
	if err != nil {
		if in.ImagePath != nil {
			s.discardImage(ctx, *in.ImagePath)
		}
		s.writeStoreError(w, "Failed to update article", err)
		return
	}
	if in.ImagePath != nil && existing.ImagePath != "" && existing.ImagePath != *in.ImagePath {
		s.discardImage(ctx, existing.ImagePath)
	}
	s.deps.Cache.InvalidateArticle(id)
	s.deps.Cache.InvalidateAggregates()
	s.publish(ctx, content.EventArticleUpdated, article)
	s.writeJSON(w, http.StatusOK, article)
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Article not found", nil)
		return
	}
	ctx := r.Context()
	article, err := s.deps.Articles.DeleteArticle(ctx, id)
	if err != nil {
		s.writeStoreError(w, "Failed to delete article", err)
		return
	}
	s.discardImage(ctx, article.ImagePath)
	s.deps.Cache.InvalidateArticle(id)
	s.deps.Cache.InvalidateAggregates()
	s.publish(ctx, content.EventArticleDeleted, article)
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Article deleted successfully"})
}

// readArticleRequest accepts multipart forms (with an optional "image"
// file), urlencoded forms and JSON bodies.
func (s *Server) readArticleRequest(r *http.Request) (articleFields, *imageUpload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}
	switch mediaType {
	case "multipart/form-data":
		return s.readMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, nil, fmt.Errorf("%w: parse form: %w", content.ErrInvalidInput, err)
		}
		return formFields(r.PostForm), nil, nil
	default:
		fields, err := jsonFields(r.Body)
		return fields, nil, err
	}
}

func (s *Server) readMultipart(r *http.Request) (articleFields, *imageUpload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, fmt.Errorf("%w: parse multipart form: %w", content.ErrInvalidInput, err)
	}
	fields := formFields(r.MultipartForm.Value)
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return fields, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read image: %w", content.ErrInvalidInput, err)
	}
	upload := &imageUpload{
		file:        file,
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		size:        header.Size,
	}
	if !strings.HasPrefix(upload.contentType, "image/") {
		closeUpload(upload)
		return nil, nil, errNotAnImage
	}
	if upload.size > s.cfg.Storage.MaxUploadBytes {
		closeUpload(upload)
		return nil, nil, errImageTooLarge
	}
	return fields, upload, nil
}

func formFields(values map[string][]string) articleFields {
	fields := articleFields{}
	for key, vals := range values {
		if len(vals) > 0 {
			fields[key] = strings.TrimSpace(vals[0])
		}
	}
	return fields
}

func jsonFields(body io.Reader) (articleFields, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode body: %w", content.ErrInvalidInput, err)
	}
	fields := articleFields{}
	for key, v := range raw {
		switch val := v.(type) {
		case string:
			fields[key] = strings.TrimSpace(val)
		case float64:
			fields[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			fields[key] = val.String()
		}
	}
	return fields, nil
}

func articleUpdate(fields articleFields) (content.ArticleUpdate, error) {
	var in content.ArticleUpdate
	for key, dst := range map[string]**string{
		"title":   &in.Title,
		"content": &in.Content,
		"excerpt": &in.Excerpt,
		"author":  &in.Author,
	} {
		if v, ok := fields[key]; ok {
			*dst = &v
		}
	}
	if raw, ok := fields["category_id"]; ok && raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return in, fmt.Errorf("%w: category_id: %w", content.ErrInvalidInput, err)
		}
		in.CategoryID = &id
	}
	return in, nil
}

func (s *Server) storeImage(ctx context.Context, up *imageUpload) (string, string, error) {
	backend := s.cfg.Storage.Backend
	path, err := s.deps.Names.ObjectName(s.cfg.Storage.Prefix, up.filename)
	if err != nil {
		metrics.ObserveUpload(backend, "failure")
		return "", "", fmt.Errorf("name upload: %w", err)
	}
	ref, err := s.deps.Blobs.PutObject(ctx, path, up.contentType, up.file)
	if err != nil {
		metrics.ObserveUpload(backend, "failure")
		return "", "", fmt.Errorf("store upload: %w", err)
	}
	metrics.ObserveUpload(backend, "success")
	s.logger.Info("image uploaded", zap.String("path", path), zap.Int64("bytes", up.size))
	return ref, path, nil
}

func (s *Server) discardImage(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.deps.Blobs.DeleteObject(ctx, path); err != nil {
		s.logger.Warn("delete image failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *Server) publish(ctx context.Context, eventType string, a content.Article) {
	if s.deps.Publisher == nil {
		return
	}
	event := content.Event{
		Type:       eventType,
		ArticleID:  a.ID,
		Title:      a.Title,
		OccurredAt: s.deps.Clock.Now(),
	}
	if user, ok := auth.UserFromContext(ctx); ok {
		event.Actor = user.ID
	}
	if _, err := s.deps.Publisher.Publish(ctx, s.cfg.PubSub.TopicName, event); err != nil {
		s.logger.Warn("publish article event failed",
			zap.String("type", eventType),
			zap.Int64("article_id", a.ID),
			zap.Error(err),
		)
	}
}

func (s *Server) writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errImageTooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, "Image is too large", err)
	case errors.Is(err, errNotAnImage):
		s.writeError(w, http.StatusBadRequest, "Only image files are allowed", err)
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, msg string, err error) {
	switch status := statusFor(err); status {
	case http.StatusNotFound:
		s.writeError(w, status, "Article not found", err)
	case http.StatusBadRequest:
		s.writeError(w, status, "Invalid article fields", err)
	default:
		s.writeError(w, http.StatusInternalServerError, msg, err)
	}
}

func closeUpload(up *imageUpload) {
	if up != nil && up.file != nil {
		_ = up.file.Close()
	}
}

func articleID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func positiveQuery(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", name, v)
	}
	return v, nil
}
