package domain

// InputData is one logical test case: a named bag of content values passed
// as keyword arguments to the function under test, plus optional metadata.
// Identity for grouping is the canonical serialized form (see Key), so two
// structurally equal inputs always land in the same group.
type InputData struct {
	// ID optionally names the input for reporting. When set it participates
	// in the grouping identity, so distinct IDs never collapse into one group.
	ID string `json:"id,omitempty"`

	// Content holds the keyword arguments for the function under test.
	Content map[string]Value `json:"content" validate:"required"`

	// ExpectedResult optionally carries a reference output for evaluators
	// that compare against ground truth. Zero Value when absent.
	ExpectedResult Value `json:"expected_result,omitempty"`
}

// NewInputData creates an InputData from a content mapping.
func NewInputData(content map[string]Value) InputData {
	return InputData{Content: content}
}

// Key returns the stable grouping identity of the input.
// The key covers ID, content, and expected result; fields left at their
// zero values are omitted so sparse inputs stay compact.
func (d InputData) Key() string {
	fields := map[string]Value{
		"content": MapValue(d.Content),
	}
	if d.ID != "" {
		fields["id"] = StringValue(d.ID)
	}
	if d.ExpectedResult.Kind != ValueNull {
		fields["expected_result"] = d.ExpectedResult
	}
	return MapValue(fields).Canonical()
}

// Validate checks if the input meets structural requirements.
func (d *InputData) Validate() error { return validate.Struct(d) }
