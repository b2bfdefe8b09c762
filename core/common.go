// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Operation represents a table operation, one of Create, Read, Update, Delete, List
type Operation string

// all supported table operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// AllOperations lists every operation a resource can permit
var AllOperations = []Operation{OperationList, OperationRead, OperationCreate, OperationUpdate, OperationDelete}

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// IsWrite returns true for operations which modify a table
func (o Operation) IsWrite() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}

// Notification describes a successful modifying operation on a resource.
type Notification struct {
	Resource  string          `json:"resource"`
	Operation Operation       `json:"operation"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
}

// Notifier is an interface to receive change notifications
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}
