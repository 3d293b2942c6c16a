package condition

type (
	BasicOperator    string
	BoolOperator     string
	StringOperator   string
	NumberOperator   string
	TimeOperator     string
	NullableOperator string
	MultipleOperator string
)

const (
	BasicEquals    BasicOperator = "EQUALS"
	BasicNotEquals BasicOperator = "NOT_EQUALS"

	BoolEquals    BoolOperator = "EQUALS"
	BoolNotEquals BoolOperator = "NOT_EQUALS"

	StringContains      StringOperator = "CONTAINS"
	StringNotContains   StringOperator = "NOT_CONTAINS"
	StringStartsWith    StringOperator = "STARTS_WITH"
	StringNotStartsWith StringOperator = "NOT_STARTS_WITH"
	StringEndsWith      StringOperator = "ENDS_WITH"
	StringNotEndsWith   StringOperator = "NOT_ENDS_WITH"

	NumberGreaterThan          NumberOperator = "GREATER_THAN"
	NumberGreaterThanOrEqualTo NumberOperator = "GREATER_THAN_OR_EQUAL_TO"
	NumberLessThan             NumberOperator = "LESS_THAN"
	NumberLessThanOrEqualTo    NumberOperator = "LESS_THAN_OR_EQUAL_TO"

	TimeBefore      TimeOperator = "BEFORE"
	TimeBeforeOrOn  TimeOperator = "BEFORE_OR_ON"
	TimeAfter       TimeOperator = "AFTER"
	TimeAfterOrOn   TimeOperator = "AFTER_OR_ON"
	TimeOfThisWeek  TimeOperator = "OF_THIS_WEEK"
	TimeOfThisMonth TimeOperator = "OF_THIS_MONTH"
	TimeOfThisYear  TimeOperator = "OF_THIS_YEAR"

	NullableEmpty    NullableOperator = "EMPTY"
	NullableNotEmpty NullableOperator = "NOT_EMPTY"

	MultipleIncludesAny    MultipleOperator = "INCLUDES_ANY"
	MultipleIncludesAll    MultipleOperator = "INCLUDES_ALL"
	MultipleNotIncludesAny MultipleOperator = "NOT_INCLUDES_ANY"
	MultipleNotIncludesAll MultipleOperator = "NOT_INCLUDES_ALL"
)

func (o BasicOperator) IsValid() bool { return o == BasicEquals || o == BasicNotEquals }

func (o BoolOperator) IsValid() bool { return o == BoolEquals || o == BoolNotEquals }

func (o StringOperator) IsValid() bool {
	switch o {
	case StringContains, StringNotContains, StringStartsWith, StringNotStartsWith, StringEndsWith, StringNotEndsWith:
		return true
	}
	return false
}

func (o NumberOperator) IsValid() bool {
	switch o {
	case NumberGreaterThan, NumberGreaterThanOrEqualTo, NumberLessThan, NumberLessThanOrEqualTo:
		return true
	}
	return false
}

func (o TimeOperator) IsValid() bool {
	switch o {
	case TimeBefore, TimeBeforeOrOn, TimeAfter, TimeAfterOrOn:
		return true
	}
	return o.IsRelative()
}

// IsRelative returns true for operators evaluated against the current time
// rather than the condition's value.
func (o TimeOperator) IsRelative() bool {
	return o == TimeOfThisWeek || o == TimeOfThisMonth || o == TimeOfThisYear
}

func (o NullableOperator) IsValid() bool { return o == NullableEmpty || o == NullableNotEmpty }

func (o MultipleOperator) IsValid() bool {
	switch o {
	case MultipleIncludesAny, MultipleIncludesAll, MultipleNotIncludesAny, MultipleNotIncludesAll:
		return true
	}
	return false
}
