package api

import (
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	"formafit/trainer-app/internal/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator:
//
//	br_phone  Brazilian phone, "(11) 99999-9999"
//	hhmm      time of day, "07:30"
//	objectid  24-char hex Mongo ID
//
// Field names in errors use the json tag.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Println("WARN: gin validator engine is not go-playground/validator; custom tags not registered")
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		mustRegister(v, "br_phone", func(fl validator.FieldLevel) bool {
			return domain.ValidPhone(fl.Field().String())
		})
		mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		})
	})
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		log.Fatalf("FATAL: registering validator %q: %v", tag, err)
	}
}

// parseDate reads an already validated YYYY-MM-DD field; empty is the zero time.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseOptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseDate(s)
	return &t
}

// parseObjectID reads an already validated objectid field.
func parseObjectID(s string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(s)
	return id
}

func parseOptionalObjectID(s string) *primitive.ObjectID {
	if s == "" {
		return nil
	}
	id := parseObjectID(s)
	return &id
}
