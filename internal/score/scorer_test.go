package score

import (
	"reflect"
	"testing"

	"github.com/ppiankov/entityshape/internal/model"
)

func TestScorer_Calculate_Conforming(t *testing.T) {
	c := &model.Comparison{
		Properties: map[model.PropertyID]model.PropertyResult{
			"P31":  {Necessity: model.NecessityRequired, Response: model.PropertyCorrect},
			"P21":  {Necessity: model.NecessityOptional, Response: model.PropertyMissing},
			"P279": {Necessity: model.NecessityAbsent, Response: model.PropertyNotInSchema},
		},
		Statements: map[model.StatementID]model.StatementResult{
			"Q1$a": {Property: "P31", Necessity: model.NecessityRequired, Response: model.StatementCorrect},
			"Q1$b": {Property: "P279", Response: model.StatementNotInSchema},
		},
	}

	summary := NewScorer().Calculate(c)

	if !summary.Conforms {
		t.Errorf("expected entity to conform, failing: %v", summary.FailingProperties)
	}
	if summary.RequiredTotal != 1 || summary.RequiredSatisfied != 1 {
		t.Errorf("expected 1/1 required satisfied, got %d/%d", summary.RequiredSatisfied, summary.RequiredTotal)
	}
	if summary.PropertyCounts[model.PropertyMissing] != 1 {
		t.Errorf("expected one missing property, got %d", summary.PropertyCounts[model.PropertyMissing])
	}
	if summary.StatementCounts[model.StatementNotInSchema] != 1 {
		t.Errorf("expected one statement not in schema, got %d", summary.StatementCounts[model.StatementNotInSchema])
	}
}

func TestScorer_Calculate_Failing(t *testing.T) {
	c := &model.Comparison{
		Properties: map[model.PropertyID]model.PropertyResult{
			"P31":  {Necessity: model.NecessityRequired, Response: model.PropertyMissing},
			"P10":  {Necessity: model.NecessityRequired, Response: model.PropertyNotEnough},
			"P2":   {Necessity: model.NecessityOptional, Response: model.PropertyTooMany},
			"P569": {Necessity: model.NecessityOptional, Response: model.PropertyIncorrect},
			"P570": {Necessity: model.NecessityNotAllowed, Response: model.PropertyAllowed},
		},
	}

	summary := NewScorer().Calculate(c)

	if summary.Conforms {
		t.Error("expected entity not to conform")
	}
	want := []model.PropertyID{"P2", "P10", "P31", "P569"}
	if !reflect.DeepEqual(summary.FailingProperties, want) {
		t.Errorf("expected failing %v, got %v", want, summary.FailingProperties)
	}
	if summary.RequiredSatisfied != 0 || summary.RequiredTotal != 2 {
		t.Errorf("expected 0/2 required satisfied, got %d/%d", summary.RequiredSatisfied, summary.RequiredTotal)
	}
}

func TestScorer_Calculate_Empty(t *testing.T) {
	summary := NewScorer().Calculate(model.NewComparison())
	if !summary.Conforms {
		t.Error("expected empty comparison to conform")
	}

	if !NewScorer().Calculate(nil).Conforms {
		t.Error("expected nil comparison to conform")
	}
}
