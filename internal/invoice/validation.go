package invoice

import "fmt"

// ValidateCreateRequest validates structural rules before any lookup.
func ValidateCreateRequest(req CreateRequest) error {
	if len(req.Lines) == 0 {
		return ErrEmptyLines
	}
	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		if line.Price <= 0 {
			return fmt.Errorf("line %d: %w", i+1, ErrInvalidPrice)
		}
	}
	return nil
}
