// Package graphql builds and executes requests against the conversation store's GraphQL API. Operation and type names
// are supplied at runtime, so every builder validates them before producing a request.
package graphql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidOperation is returned when an operation descriptor cannot produce a well-formed request
var ErrInvalidOperation = errors.New("graphql: invalid operation")

var nameRegexp = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Operation describes a mutation whose shape is owned by the store schema
type Operation struct {
	Name          string
	InputTypeName string
	SelectionSet  string
}

// Request is a GraphQL request body
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (op Operation) validate() error {
	if err := validateName("operation name", op.Name); err != nil {
		return err
	}
	if err := validateName("input type name", op.InputTypeName); err != nil {
		return err
	}
	return validateSelectionSet(op.SelectionSet)
}

func validateName(what string, name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w: %s '%s' is not a valid GraphQL name", ErrInvalidOperation, what, name)
	}
	return nil
}

func validateSelectionSet(selectionSet string) error {
	if strings.TrimSpace(selectionSet) == "" {
		return fmt.Errorf("%w: empty selection set", ErrInvalidOperation)
	}
	depth := 0
	for _, r := range selectionSet {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced braces in selection set", ErrInvalidOperation)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced braces in selection set", ErrInvalidOperation)
	}
	return nil
}

// NewMutation builds a request invoking op with the given input object
func NewMutation(op Operation, input any) (Request, error) {
	if err := op.validate(); err != nil {
		return Request{}, err
	}
	query := fmt.Sprintf(`
      mutation PublishModelResponse($input: %s!) {
        %s(input: $input) {
          %s
        }
      }
    `, op.InputTypeName, op.Name, op.SelectionSet)

	return Request{
		Query:     query,
		Variables: map[string]any{"input": input},
	}, nil
}

// NewGetQuery builds a point lookup by id
func NewGetQuery(name string, inputTypeName string, id string, selectionSet string) (Request, error) {
	if err := validateName("query name", name); err != nil {
		return Request{}, err
	}
	if err := validateName("input type name", inputTypeName); err != nil {
		return Request{}, err
	}
	if err := validateSelectionSet(selectionSet); err != nil {
		return Request{}, err
	}
	query := fmt.Sprintf(`
      query GetMessage($id: %s!) {
        %s(id: $id) {
          %s
        }
      }
    `, inputTypeName, name, selectionSet)

	return Request{
		Query:     query,
		Variables: map[string]any{"id": id},
	}, nil
}

// NewListQuery builds a filtered list query returning a page of items
func NewListQuery(name string, filterTypeName string, filter any, limit int, itemSelectionSet string) (Request, error) {
	if err := validateName("query name", name); err != nil {
		return Request{}, err
	}
	if err := validateName("filter type name", filterTypeName); err != nil {
		return Request{}, err
	}
	if err := validateSelectionSet(itemSelectionSet); err != nil {
		return Request{}, err
	}
	if limit <= 0 {
		return Request{}, fmt.Errorf("%w: list limit must be positive, got %d", ErrInvalidOperation, limit)
	}
	query := fmt.Sprintf(`
      query ListMessages($filter: %s!, $limit: Int) {
        %s(filter: $filter, limit: $limit) {
          items {
            %s
          }
        }
      }
    `, filterTypeName, name, itemSelectionSet)

	return Request{
		Query: query,
		Variables: map[string]any{
			"filter": filter,
			"limit":  limit,
		},
	}, nil
}
