package deps

import (
	"reflect"
	"strings"

	"github.com/and161185/coursemart/internal/auth"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Deps struct {
	Logger       *zap.SugaredLogger
	TokenManager *auth.TokenManager
	Validator    *validator.Validate
}

func NewDependencies(secretKey, logFile string) *Deps {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		logCfg.OutputPaths = append(logCfg.OutputPaths, logFile)
	}

	logger := zap.Must(logCfg.Build())

	deps := Deps{
		Logger:       logger.Sugar(),
		TokenManager: auth.NewTokenManager(secretKey),
		Validator:    NewValidator(),
	}

	return &deps
}

// NewValidator reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
