package backend

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskdeck/internal/storage"
	"taskdeck/internal/task"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signUpRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        task.User `json:"user"`
}

type createTaskRequest struct {
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	Priority string    `json:"priority"`
}

func (s *Server) signUpAction(c *gin.Context) {
	const op = "backend.signUp"
	log := s.log.WithField("operation", op)

	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "email, password, first_name and last_name are required")
		return
	}
	valid, err := task.ValidateSignUp(task.SignUpRequest(req))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, task.UserMessage(err))
		return
	}

	u, err := s.db.CreateUser(c.Request.Context(), valid)
	if errors.Is(err, storage.ErrUserExists) {
		abortWithError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to create user")
		abortWithError(c, http.StatusInternalServerError, "failed to create user")
		return
	}
	log.WithField("user", u.ID).Info("user signed up")
	c.JSON(http.StatusCreated, u)
}

func (s *Server) tokenAction(c *gin.Context) {
	const op = "backend.token"
	log := s.log.WithField("operation", op)

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "email and password are required")
		return
	}
	u, err := s.db.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, storage.ErrInvalidCredentials) {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to authenticate")
		abortWithError(c, http.StatusInternalServerError, "failed to sign in")
		return
	}
	sess, err := s.tokens.Issue(u)
	if err != nil {
		log.WithError(err).Error("failed to issue token")
		abortWithError(c, http.StatusInternalServerError, "failed to sign in")
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: sess.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(sess.ExpiresAt).Seconds()),
		ExpiresAt:   sess.ExpiresAt,
		User:        sess.User,
	})
}

func (s *Server) logoutAction(c *gin.Context) {
	if claims, ok := c.Get(ctxClaims); ok {
		s.tokens.Revoke(claims.(*Claims))
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) userAction(c *gin.Context) {
	u, err := s.db.UserByID(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		s.writeStoreError(c, "backend.user", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) listTasksAction(c *gin.Context) {
	if order := c.DefaultQuery("order", "deadline.desc"); order != "deadline.desc" {
		abortWithError(c, http.StatusBadRequest, "only order=deadline.desc is supported")
		return
	}
	tasks, err := s.db.TasksByOwner(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		s.writeStoreError(c, "backend.listTasks", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTaskAction(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request structure")
		return
	}
	p, err := task.ValidatePayload(task.Payload{Title: req.Title, Deadline: req.Deadline, Priority: task.Priority(req.Priority)})
	if err != nil {
		abortWithError(c, http.StatusBadRequest, task.UserMessage(err))
		return
	}
	created, err := s.db.InsertTask(c.Request.Context(), c.GetString(ctxUserID), p)
	if err != nil {
		s.writeStoreError(c, "backend.createTask", err)
		return
	}
	c.JSON(http.StatusCreated, []task.Task{created})
}

func (s *Server) updateTaskAction(c *gin.Context) {
	var patch task.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request structure")
		return
	}
	patch, err := task.ValidatePatch(patch)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, task.UserMessage(err))
		return
	}
	updated, err := s.db.UpdateTask(c.Request.Context(), c.GetString(ctxUserID), c.Param("taskID"), patch)
	if err != nil {
		s.writeStoreError(c, "backend.updateTask", err)
		return
	}
	c.JSON(http.StatusOK, []task.Task{updated})
}

func (s *Server) deleteTaskAction(c *gin.Context) {
	if err := s.db.DeleteTask(c.Request.Context(), c.GetString(ctxUserID), c.Param("taskID")); err != nil {
		s.writeStoreError(c, "backend.deleteTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) profileAction(c *gin.Context) {
	userID := c.Param("userID")
	// Profiles are private; someone else's row looks the same as a missing one.
	if userID != c.GetString(ctxUserID) {
		abortWithError(c, http.StatusNotFound, (&task.NotFoundError{Kind: "profile", ID: userID}).Error())
		return
	}
	p, err := s.db.Profile(c.Request.Context(), userID)
	if err != nil {
		s.writeStoreError(c, "backend.profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) writeStoreError(c *gin.Context, op string, err error) {
	if task.IsNotFound(err) {
		abortWithError(c, http.StatusNotFound, err.Error())
		return
	}
	s.log.WithField("operation", op).WithError(err).Error("storage failure")
	abortWithError(c, http.StatusInternalServerError, "internal error")
}
