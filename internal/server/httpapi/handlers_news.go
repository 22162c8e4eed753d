package httpapi

import (
	"net/http"
	"strconv"

	"github.com/funews/funews/internal/server/models"
	"github.com/funews/funews/internal/server/repositories/articles"
	"github.com/labstack/echo/v4"
)

// --- categories ---

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parentId"`
	Active      bool   `json:"active"`
}

func categoryJSON(cat *models.Category) echo.Map {
	return echo.Map{
		"id": cat.ID, "name": cat.Name, "description": cat.Description,
		"parentId": cat.ParentID, "active": cat.IsActive,
	}
}

func (s *Server) handleCreateCategory(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name required"})
	}
	cat, err := s.news.CreateCategory(c.Request().Context(), &models.Category{
		Name: req.Name, Description: req.Description, ParentID: req.ParentID, IsActive: req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, categoryJSON(cat))
}

func (s *Server) handleListCategories(c echo.Context) error {
	cats, err := s.news.ListCategories(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]echo.Map, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryJSON(cat))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUpdateCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req categoryRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name required"})
	}
	err := s.news.UpdateCategory(c.Request().Context(), &models.Category{
		ID: id, Name: req.Name, Description: req.Description,
		ParentID: req.ParentID, IsActive: req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := s.news.DeleteCategory(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- articles ---

type articleRequest struct {
	Title      string  `json:"title"`
	Headline   string  `json:"headline"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Published  bool    `json:"published"`
	CategoryID int64   `json:"categoryId"`
	TagIDs     []int64 `json:"tagIds"`
}

func articleJSON(a *models.Article) echo.Map {
	return echo.Map{
		"id": a.ID, "title": a.Title, "headline": a.Headline,
		"content": a.Content, "source": a.Source,
		"published":  a.Status == models.ArticlePublished,
		"categoryId": a.CategoryID, "createdById": a.CreatedByID,
		"createdDate": a.CreatedDate, "tagIds": a.TagIDs,
	}
}

func articleStatus(published bool) models.ArticleStatus {
	if published {
		return models.ArticlePublished
	}
	return models.ArticleDraft
}

func (s *Server) handleCreateArticle(c echo.Context) error {
	var req articleRequest
	if err := c.Bind(&req); err != nil || req.Title == "" || req.CategoryID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "title and categoryId required"})
	}
	article, err := s.news.CreateArticle(c.Request().Context(), &models.Article{
		Title: req.Title, Headline: req.Headline, Content: req.Content,
		Source: req.Source, Status: articleStatus(req.Published),
		CategoryID: req.CategoryID, CreatedByID: accountIDFrom(c), TagIDs: req.TagIDs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, articleJSON(article))
}

// handleListArticles serves both the public reading surface and staff
// views: anonymous callers only ever see published articles.
func (s *Server) handleListArticles(c echo.Context) error {
	filter := articles.Filter{Search: c.QueryParam("search")}
	if v := c.QueryParam("categoryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid categoryId"})
		}
		filter.CategoryID = id
	}
	if !s.callerIsStaff(c) {
		filter.PublishedOnly = true
	}

	list, err := s.news.ListArticles(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]echo.Map, 0, len(list))
	for _, a := range list {
		out = append(out, articleJSON(a))
	}
	return c.JSON(http.StatusOK, out)
}

// callerIsStaff checks the bearer token if one is present; listing works
// without one.
func (s *Server) callerIsStaff(c echo.Context) bool {
	token := bearerToken(c)
	if token == "" {
		return false
	}
	claims, err := s.sessions.Validate(c.Request().Context(), token)
	if err != nil {
		return false
	}
	return claims.Role == string(models.RoleStaff) || claims.Role == string(models.RoleAdmin)
}

func (s *Server) handleGetArticle(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	article, err := s.news.GetArticle(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if article.Status != models.ArticlePublished && !s.callerIsStaff(c) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	}
	return c.JSON(http.StatusOK, articleJSON(article))
}

func (s *Server) handleUpdateArticle(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req articleRequest
	if err := c.Bind(&req); err != nil || req.Title == "" || req.CategoryID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "title and categoryId required"})
	}
	err := s.news.UpdateArticle(c.Request().Context(), &models.Article{
		ID: id, Title: req.Title, Headline: req.Headline, Content: req.Content,
		Source: req.Source, Status: articleStatus(req.Published),
		CategoryID: req.CategoryID, TagIDs: req.TagIDs,
	}, accountIDFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteArticle(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := s.news.DeleteArticle(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- tags ---

type tagRequest struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

func (s *Server) handleCreateTag(c echo.Context) error {
	var req tagRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name required"})
	}
	tag, err := s.news.CreateTag(c.Request().Context(), &models.Tag{Name: req.Name, Note: req.Note})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": tag.ID, "name": tag.Name, "note": tag.Note})
}

func (s *Server) handleListTags(c echo.Context) error {
	list, err := s.news.ListTags(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]echo.Map, 0, len(list))
	for _, tag := range list {
		out = append(out, echo.Map{"id": tag.ID, "name": tag.Name, "note": tag.Note})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUpdateTag(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req tagRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name required"})
	}
	if err := s.news.UpdateTag(c.Request().Context(), &models.Tag{ID: id, Name: req.Name, Note: req.Note}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteTag(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := s.news.DeleteTag(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- assets ---

func (s *Server) handleAssetUploadURL(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if _, err := s.news.GetArticle(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	key, url, err := s.assets.GetPresignedPutURL(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"key": key, "url": url})
}

func (s *Server) handleAssetDownloadURL(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "key required"})
	}
	url, err := s.assets.GetPresignedGetURL(c.Request().Context(), key)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}
