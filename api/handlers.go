package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotask-api/domain"
)

const postBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(store, auth, logger))
	e.POST("/api/tasks", postTask(store, auth, deduper))
	e.PUT("/api/tasks/:id", putTask(store, auth))
	e.POST("/api/tasks/:id/toggle", postToggleTask(store, auth))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth))
	e.POST("/api/user", postUser(store, auth))
	e.GET("/healthz", healthz())
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
}

type createTaskResponse struct {
	ID        string `json:"id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type toggleTaskRequest struct {
	Status domain.Status `json:"status"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newListRequestMetrics(c.Request().Context(), logger)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		filter, filterErr := domain.ParseStatusFilter(c.QueryParam("status"))
		if filterErr != nil {
			metrics.SetErrorStage("invalid_status_filter")
			err = c.String(http.StatusBadRequest, filterErr.Error())
			return err
		}
		search := c.QueryParam("search")
		metrics.SetFilters(search != "", string(filter))

		fetchStart := time.Now()
		tasks, fetchErr := store.FetchTasks(ctx, userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksFetched(len(tasks))

		visible := domain.VisibleTasks(tasks, search, filter)
		metrics.SetTasksVisible(len(visible))

		err = c.JSON(http.StatusOK, tasksResponse{Tasks: visible})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req taskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		task, err := domain.NewTask(userID, req.Title, req.Description, req.DueDate)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		key := c.Request().Header.Get("Idempotency-Key")
		if key != "" && deduper != nil {
			added, dedupeErr := deduper.Add(ctx, userID, key)
			if dedupeErr != nil {
				// Dedup is an optimization; a redis failure must not block writes.
				c.Logger().Warnf("idempotency check failed: %v", dedupeErr)
			} else if !added {
				return c.JSON(http.StatusOK, createTaskResponse{Duplicate: true})
			}
		}

		if err := store.InsertTask(ctx, task); err != nil {
			if key != "" && deduper != nil {
				_ = deduper.Remove(ctx, userID, key)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create task")
		}
		return c.JSON(http.StatusCreated, createTaskResponse{ID: task.ID})
	}
}

func putTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req taskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := domain.ValidateTaskFields(req.Title, req.DueDate); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		changes := domain.TaskChanges{Title: req.Title, Description: req.Description, DueDate: req.DueDate}
		if err := store.UpdateTask(ctx, userID, c.Param("id"), changes); err != nil {
			return taskMutationError(c, err, "failed to update task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postToggleTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req toggleTaskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if !req.Status.Valid() {
			return c.String(http.StatusBadRequest, "status must be pending or completed")
		}

		if err := store.SetTaskStatus(ctx, userID, c.Param("id"), req.Status.Toggled()); err != nil {
			return taskMutationError(c, err, "failed to toggle task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := store.DeleteTask(ctx, userID, c.Param("id")); err != nil {
			return taskMutationError(c, err, "failed to delete task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postUser(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var u domain.User
		if err := decodeBody(c.Request().Body, &u); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		u.ID = userID
		if err := store.UpsertUser(ctx, u); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to save user")
		}
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}
}

func decodeBody(body io.Reader, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, postBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func taskMutationError(c echo.Context, err error, msg string) error {
	if errors.Is(err, domain.ErrTaskNotFound) {
		return c.String(http.StatusNotFound, err.Error())
	}
	c.Logger().Error(err)
	return c.String(http.StatusInternalServerError, msg)
}
