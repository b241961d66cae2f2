package planservice

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/autohtn/internal/crafting"
	"github.com/cory-johannsen/autohtn/internal/htn"
)

// ErrBadRequest marks a request Struct that does not describe a plan request.
var ErrBadRequest = errors.New("bad plan request")

// Request field names.
const (
	FieldRulesJSON = "rules_json"
	FieldRulebook  = "rulebook"
	FieldAgent     = "agent"
)

// Request asks for a plan over an inline JSON rulebook or a stored one.
//
// Invariant: exactly one of RulesJSON and Rulebook is set.
type Request struct {
	RulesJSON string
	Rulebook  string
	Agent     string
}

// Validate checks the Request invariant.
func (r Request) Validate() error {
	switch {
	case r.RulesJSON == "" && r.Rulebook == "":
		return fmt.Errorf("%w: one of %s or %s is required", ErrBadRequest, FieldRulesJSON, FieldRulebook)
	case r.RulesJSON != "" && r.Rulebook != "":
		return fmt.Errorf("%w: %s and %s are mutually exclusive", ErrBadRequest, FieldRulesJSON, FieldRulebook)
	}
	return nil
}

// Struct encodes r, omitting empty fields.
func (r Request) Struct() (*structpb.Struct, error) {
	fields := map[string]any{}
	if r.RulesJSON != "" {
		fields[FieldRulesJSON] = r.RulesJSON
	}
	if r.Rulebook != "" {
		fields[FieldRulebook] = r.Rulebook
	}
	if r.Agent != "" {
		fields[FieldAgent] = r.Agent
	}
	return structpb.NewStruct(fields)
}

// ParseRequest decodes and validates a request Struct. Unknown fields are rejected.
func ParseRequest(s *structpb.Struct) (Request, error) {
	var r Request
	for name, v := range s.GetFields() {
		str, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return Request{}, fmt.Errorf("%w: field %q must be a string", ErrBadRequest, name)
		}
		switch name {
		case FieldRulesJSON:
			r.RulesJSON = str.StringValue
		case FieldRulebook:
			r.Rulebook = str.StringValue
		case FieldAgent:
			r.Agent = str.StringValue
		default:
			return Request{}, fmt.Errorf("%w: unknown field %q", ErrBadRequest, name)
		}
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Response reports one planning run. Steps, TimeLeft and Inventory are set only
// when Found.
type Response struct {
	RunID     string
	Found     bool
	Steps     []string
	TimeLeft  int
	Inventory []crafting.Holding
	Stats     htn.Stats
}

// Struct encodes r.
func (r Response) Struct() (*structpb.Struct, error) {
	steps := make([]any, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = s
	}
	inventory := make([]any, len(r.Inventory))
	for i, h := range r.Inventory {
		inventory[i] = map[string]any{"item": h.Item, "qty": h.Qty}
	}
	return structpb.NewStruct(map[string]any{
		"run_id":    r.RunID,
		"found":     r.Found,
		"steps":     steps,
		"time_left": r.TimeLeft,
		"inventory": inventory,
		"stats": map[string]any{
			"expansions":        r.Stats.Expansions,
			"backtracks":        r.Stats.Backtracks,
			"pruned":            r.Stats.Pruned,
			"operator_failures": r.Stats.OperatorFailures,
		},
	})
}

// ParseResponse decodes a response Struct.
func ParseResponse(s *structpb.Struct) (Response, error) {
	f := s.GetFields()
	r := Response{
		RunID:    f["run_id"].GetStringValue(),
		Found:    f["found"].GetBoolValue(),
		TimeLeft: int(f["time_left"].GetNumberValue()),
	}
	for _, v := range f["steps"].GetListValue().GetValues() {
		r.Steps = append(r.Steps, v.GetStringValue())
	}
	for _, v := range f["inventory"].GetListValue().GetValues() {
		h := v.GetStructValue().GetFields()
		r.Inventory = append(r.Inventory, crafting.Holding{
			Item: h["item"].GetStringValue(),
			Qty:  int(h["qty"].GetNumberValue()),
		})
	}
	stats := f["stats"].GetStructValue().GetFields()
	r.Stats = htn.Stats{
		Expansions:       int(stats["expansions"].GetNumberValue()),
		Backtracks:       int(stats["backtracks"].GetNumberValue()),
		Pruned:           int(stats["pruned"].GetNumberValue()),
		OperatorFailures: int(stats["operator_failures"].GetNumberValue()),
	}
	if r.RunID == "" {
		return Response{}, errors.New("plan response has no run_id")
	}
	return r, nil
}
