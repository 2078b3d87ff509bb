package handler

import (
	"net/http"
	"reflect"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/middleware"
	"github.com/funkypatns/progym/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondErr maps a service error to its HTTP status and envelope.
func respondErr(c *gin.Context, err error) {
	c.JSON(apierror.HTTPStatus(err), apierror.From(err))
}

// actorFrom builds the acting staff identity from the JWT claims plus the
// optional X-Shift-ID header binding the request to an open shift.
func actorFrom(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	actor := service.Actor{Role: claims.Role}
	if uid, err := uuid.Parse(claims.UserID); err == nil {
		actor.UserID = uid
	}
	if raw := c.GetHeader("X-Shift-ID"); raw != "" {
		if sid, err := uuid.Parse(raw); err == nil {
			actor.ShiftID = &sid
		}
	}
	return actor
}

// pathUUID parses the named path parameter as a UUID, writing a 400 when it
// is malformed.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
