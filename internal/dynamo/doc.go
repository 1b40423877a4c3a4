// Package dynamo provides the core vocabulary for finite-horizon optimal
// control problems.
//
// The package defines the fundamental types and capability interfaces shared
// by the trajectory optimizer and the MPC layer:
//
//   - [State], [Control]: plain float64 vectors
//   - [Trajectory]: a nominal state/control sequence over one horizon
//   - [System]: discrete-time dynamics with linearization
//   - [Cost]: stage/terminal cost with quadratic expansions
//   - [Continuous]: ODE right-hand side (dX/dt = f(X, u, t)) for models
//     that are discretized before optimization
//
// Derivative blocks use gonum matrix types so they can feed the Riccati
// recursion without conversion.
//
// # Thread Safety
//
// System and Cost implementations must be safe for concurrent read-only use:
// the solver evaluates them from multiple workers during the linearization
// and rollout phases.
package dynamo
