package server

import (
	"postapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Status defaults to draft. The owner is always the caller.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,content=string,status=string,tags=[]string,image_url=string} true "Post"
// @Success 201 {object} object{success=bool,message=string,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	payload, err := bodyPayload(c)
	if err != nil {
		return err
	}

	post, err := s.postService.CreatePost(c.UserContext(), actor(c), payload)
	if err != nil {
		return err
	}

	s.publishPostEvent(c.UserContext(), EventPostCreated, post)
	return respond(c, fiber.StatusCreated, "Post created successfully", fiber.Map{"post": post})
}

// ListPosts handles GET /api/posts
// @Summary List posts
// @Description Published posts, plus the caller's own posts in any state.
// @Tags posts
// @Produce json
// @Param page query int false "Page (from 1)"
// @Param limit query int false "Page size (max 100)"
// @Param user_id query int false "Only posts by this author"
// @Success 200 {object} object{success=bool,posts=[]models.Post,pagination=models.Pagination}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	authorID, err := optionalUintQuery(c, "user_id")
	if err != nil {
		return err
	}
	page, limit := pageParams(c)

	posts, pagination, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		ViewerID: viewerID(c),
		AuthorID: authorID,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "", fiber.Map{
		"posts":      posts,
		"pagination": pagination,
	})
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Description Counts a view on every successful read.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,post=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post ID")
	if err != nil {
		return err
	}

	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"post": post})
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update own post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{title=string,content=string,status=string,tags=[]string,image_url=string} true "Fields to change"
// @Success 200 {object} object{success=bool,message=string,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post ID")
	if err != nil {
		return err
	}
	payload, err := bodyPayload(c)
	if err != nil {
		return err
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor(c), id, payload)
	if err != nil {
		return err
	}

	s.publishPostEvent(c.UserContext(), EventPostUpdated, post)
	return respond(c, fiber.StatusOK, "Post updated successfully", fiber.Map{"post": post})
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete own post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "post ID")
	if err != nil {
		return err
	}

	who := actor(c)
	if err := s.postService.DeletePost(c.UserContext(), who, id); err != nil {
		return err
	}

	s.publishPostDeleted(c.UserContext(), who.UserID, id)
	return respond(c, fiber.StatusOK, "Post deleted successfully", nil)
}
