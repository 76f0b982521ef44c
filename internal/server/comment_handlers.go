package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListComments handles GET /api/posts/:id/comments
// @Summary List comments of a post
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,comments=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "post ID")
	if err != nil {
		return err
	}

	comments, err := s.commentService.ListComments(c.UserContext(), postID, viewerID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"comments": comments})
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} object{success=bool,message=string,comment=models.Comment}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "post ID")
	if err != nil {
		return err
	}
	payload, err := bodyPayload(c)
	if err != nil {
		return err
	}

	comment, err := s.commentService.AddComment(c.UserContext(), actor(c), postID, payload)
	if err != nil {
		return err
	}

	s.publishCommentCreated(c.UserContext(), comment)
	return respond(c, fiber.StatusCreated, "Comment added successfully", fiber.Map{"comment": comment})
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
// @Summary Delete own comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "post ID")
	if err != nil {
		return err
	}
	commentID, err := parseID(c, "commentId", "comment ID")
	if err != nil {
		return err
	}

	who := actor(c)
	if err := s.commentService.RemoveComment(c.UserContext(), who, postID, commentID); err != nil {
		return err
	}

	s.publishCommentDeleted(c.UserContext(), who.UserID, postID, commentID)
	return respond(c, fiber.StatusOK, "Comment deleted successfully", nil)
}
