package query

import "fmt"

// Retrieve repeatedly steps node, collecting emissions, until it is
// exhausted or maxResults have been collected (spec.md §4.7.5). If the
// limit halted iteration before exhaustion, it also returns the node's
// serialized cursor state so the caller can resume later via Decode;
// otherwise resumeState is nil and done is true.
func Retrieve(node Node, maxResults int) (results []Value, resumeState []byte, done bool, err error) {
	for len(results) < maxResults {
		v, stepErr := node.Step()
		if stepErr != nil {
			return results, nil, false, fmt.Errorf("query: retrieve: %w", stepErr)
		}
		if v == Last {
			return results, nil, true, nil
		}
		results = append(results, v)
	}
	state, encErr := node.Encode()
	if encErr != nil {
		return results, nil, false, fmt.Errorf("query: retrieve: encoding resume state: %w", encErr)
	}
	return results, state, false, nil
}
