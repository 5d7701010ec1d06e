package extract

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

// ScheduleDecision is the validated content of a scheduling reply.
type ScheduleDecision struct {
	ScheduledDate               time.Time
	MaintenanceWindow           models.MaintenanceWindow
	RiskScore                   float64
	PredictedFailureProbability float64
	RecommendedAction           models.RecommendedAction
	Reasoning                   string
}

// PartsOrderDecision is the validated content of a parts-ordering reply.
type PartsOrderDecision struct {
	SupplierID           string
	SupplierName         string
	OrderItems           []models.OrderItem
	TotalCost            float64
	ExpectedDeliveryDate time.Time
	Reasoning            string
}

// Wire shapes. Numeric fields are pointers so that a missing value is told
// apart from zero.

type windowWire struct {
	ID               string `json:"id" validate:"required"`
	StartTime        string `json:"startTime" validate:"required"`
	EndTime          string `json:"endTime" validate:"required"`
	ProductionImpact string `json:"productionImpact" validate:"required,oneof=Low Medium High"`
	IsAvailable      *bool  `json:"isAvailable" validate:"required"`
}

type scheduleWire struct {
	ScheduledDate               string      `json:"scheduledDate" validate:"required"`
	MaintenanceWindow           *windowWire `json:"maintenanceWindow" validate:"required"`
	RiskScore                   *float64    `json:"riskScore" validate:"required,gte=0,lte=100"`
	PredictedFailureProbability *float64    `json:"predictedFailureProbability" validate:"required,gte=0,lte=1"`
	RecommendedAction           string      `json:"recommendedAction" validate:"required,oneof=IMMEDIATE URGENT SCHEDULED MONITOR"`
	Reasoning                   string      `json:"reasoning" validate:"required"`
}

type orderItemWire struct {
	PartNumber string   `json:"partNumber" validate:"required"`
	PartName   string   `json:"partName" validate:"required"`
	Quantity   *int     `json:"quantity" validate:"required,gt=0"`
	UnitCost   *float64 `json:"unitCost" validate:"required,gte=0"`
	TotalCost  *float64 `json:"totalCost" validate:"required,gte=0"`
}

type partsOrderWire struct {
	SupplierID           string          `json:"supplierId" validate:"required"`
	SupplierName         string          `json:"supplierName" validate:"required"`
	OrderItems           []orderItemWire `json:"orderItems" validate:"required,min=1,dive"`
	TotalCost            *float64        `json:"totalCost" validate:"required,gte=0"`
	ExpectedDeliveryDate string          `json:"expectedDeliveryDate" validate:"required"`
	Reasoning            string          `json:"reasoning" validate:"required"`
}

// decisionValidate reports field paths by their JSON names.
var decisionValidate *validator.Validate

func init() {
	decisionValidate = validator.New(validator.WithRequiredStructEnabled())
	decisionValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ParseSchedule extracts and validates a scheduling decision from text.
func ParseSchedule(text string) (*ScheduleDecision, error) {
	var w scheduleWire
	if err := decode(text, &w); err != nil {
		return nil, err
	}
	if err := validateStruct(&w, text); err != nil {
		return nil, err
	}

	scheduled, err := parseTime("scheduledDate", w.ScheduledDate, text)
	if err != nil {
		return nil, err
	}
	start, err := parseTime("maintenanceWindow.startTime", w.MaintenanceWindow.StartTime, text)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("maintenanceWindow.endTime", w.MaintenanceWindow.EndTime, text)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, &SchemaValidationError{
			Field:    "maintenanceWindow.endTime",
			Reason:   "must be after startTime",
			Response: text,
		}
	}

	return &ScheduleDecision{
		ScheduledDate: scheduled,
		MaintenanceWindow: models.MaintenanceWindow{
			ID:               w.MaintenanceWindow.ID,
			StartTime:        start,
			EndTime:          end,
			ProductionImpact: models.ProductionImpact(w.MaintenanceWindow.ProductionImpact),
			IsAvailable:      *w.MaintenanceWindow.IsAvailable,
		},
		RiskScore:                   *w.RiskScore,
		PredictedFailureProbability: *w.PredictedFailureProbability,
		RecommendedAction:           models.RecommendedAction(w.RecommendedAction),
		Reasoning:                   w.Reasoning,
	}, nil
}

// ParsePartsOrder extracts and validates a parts-ordering decision from text.
func ParsePartsOrder(text string) (*PartsOrderDecision, error) {
	var w partsOrderWire
	if err := decode(text, &w); err != nil {
		return nil, err
	}
	if err := validateStruct(&w, text); err != nil {
		return nil, err
	}

	delivery, err := parseTime("expectedDeliveryDate", w.ExpectedDeliveryDate, text)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(w.OrderItems))
	for _, it := range w.OrderItems {
		items = append(items, models.OrderItem{
			PartNumber: it.PartNumber,
			PartName:   it.PartName,
			Quantity:   *it.Quantity,
			UnitCost:   *it.UnitCost,
			TotalCost:  *it.TotalCost,
		})
	}

	return &PartsOrderDecision{
		SupplierID:           w.SupplierID,
		SupplierName:         w.SupplierName,
		OrderItems:           items,
		TotalCost:            *w.TotalCost,
		ExpectedDeliveryDate: delivery,
		Reasoning:            w.Reasoning,
	}, nil
}

// validateStruct runs the validator and converts the first failure.
func validateStruct(v interface{}, text string) error {
	err := decisionValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &SchemaValidationError{Field: "(root)", Reason: err.Error(), Response: text, Err: err}
	}
	fe := verrs[0]
	return &SchemaValidationError{
		Field:    fieldPath(fe.Namespace()),
		Reason:   reason(fe),
		Response: text,
		Err:      err,
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	}
	return "failed " + fe.Tag() + " check"
}

func parseTime(field, value, text string) (time.Time, error) {
	t, err := models.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, &SchemaValidationError{
			Field:    field,
			Reason:   fmt.Sprintf("not an ISO-8601 timestamp: %q", value),
			Response: text,
			Err:      err,
		}
	}
	return t, nil
}
