package server

import (
	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
// @Summary User registration
// @Description Register a new account and receive a token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,full_name=string} true "Registration request"
// @Success 201 {object} object{success=bool,message=string,token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	payload, err := bodyPayload(c)
	if err != nil {
		return err
	}

	result, err := s.userService.Register(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusCreated, "User created successfully", fiber.Map{
		"token": result.Token,
		"user":  result.User,
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with a username or email in the login field
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{login=string,password=string} true "Login request"
// @Success 200 {object} object{success=bool,message=string,token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	payload, err := bodyPayload(c)
	if err != nil {
		return err
	}

	result, err := s.userService.Login(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "Login successful", fiber.Map{
		"token": result.Token,
		"user":  result.User,
	})
}

// GetMe handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), viewerID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"user": user})
}
