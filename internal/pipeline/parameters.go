// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// NotebookParameters returns the process parameters declared by the
// application notebook. It does not modify the state.
func (o *Orchestrator) NotebookParameters(ctx context.Context) ([]Parameter, error) {
	if o.Generator == nil {
		return nil, errors.New("artifact generator is not configured")
	}

	store, err := o.load(OpParameters)
	if err != nil {
		return nil, err
	}
	repo, err := o.inspect(ctx, store)
	if err != nil {
		return nil, err
	}

	params, err := o.Generator.Parameters(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("read notebook parameters: %w", err)
	}
	o.logger().Debug("notebook parameters read", "count", len(params))
	return params, nil
}
