package solver

import (
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"

	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
)

// Params shapes the virtually conditioned model: every link is massless
// except the end effector, which gets Mass and a uniform rotational Inertia.
type Params struct {
	Mass    float64
	Inertia float64
	// JointInertia is added to the diagonal of the joint space inertia
	// matrix so that redundant or singular configurations stay solvable.
	JointInertia float64
	// Damping is the fraction of joint velocity kept after every step.
	Damping float64
}

func DefaultParams() Params {
	return Params{
		Mass:         1.0,
		Inertia:      1.0,
		JointInertia: 1e-4,
		Damping:      0.9,
	}
}

// ForwardDynamics turns a Cartesian wrench on the end effector into joint
// motion by simulating q̈ = H⁻¹ Jᵀ f with H = Jᵀ Λ J, the joint space inertia
// of the conditioned chain. It implements [dynamo.System] for its integrator.
//
// ForwardDynamics is driven from a single control goroutine; the read
// accessors may be called from other goroutines.
type ForwardDynamics struct {
	chain  *Chain
	params Params
	integ  dynamo.Integrator
	lambda *mat.DiagDense

	mu    sync.RWMutex
	x     dynamo.State
	t     float64
	pose  spatialmath.Pose
	eeVel dynamo.Vector6
}

func New(chain *Chain, integ dynamo.Integrator, params Params) (*ForwardDynamics, error) {
	if err := chain.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid chain")
	}
	if params.Mass <= 0 || params.Inertia <= 0 {
		return nil, errors.Wrap(dynamo.ErrParameterBounds, "end effector mass and inertia must be positive")
	}
	if params.Damping < 0 || params.Damping > 1 {
		return nil, errors.Wrapf(dynamo.ErrParameterBounds, "damping %.3f outside [0, 1]", params.Damping)
	}

	m, i := params.Mass, params.Inertia
	f := &ForwardDynamics{
		chain:  chain,
		params: params,
		integ:  integ,
		lambda: mat.NewDiagDense(6, []float64{m, m, m, i, i, i}),
		x:      make(dynamo.State, 2*chain.NumJoints()),
	}
	f.updateKinematics()
	return f, nil
}

func (f *ForwardDynamics) StateDim() int   { return 2 * f.chain.NumJoints() }
func (f *ForwardDynamics) ControlDim() int { return 6 }

// Derive returns [q̇, q̈] for the wrench u.
func (f *ForwardDynamics) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := f.chain.NumJoints()
	q, qd := x.Split(n)

	dx := make(dynamo.State, 2*n)
	copy(dx, qd)

	jac, _ := f.chain.Jacobian(q)

	var jtl mat.Dense
	jtl.Mul(jac.T(), f.lambda)
	var h mat.Dense
	h.Mul(&jtl, jac)

	sym := mat.NewSymDense(n, nil)
	for r := 0; r < n; r++ {
		for c := r; c < n; c++ {
			v := 0.5 * (h.At(r, c) + h.At(c, r))
			if r == c {
				v += f.params.JointInertia
			}
			sym.SetSym(r, c, v)
		}
	}

	var b mat.VecDense
	b.MulVec(jac.T(), mat.NewVecDense(6, []float64(u)))

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return dx
	}
	var acc mat.VecDense
	if err := chol.SolveVecTo(&acc, &b); err != nil {
		return dx
	}
	for i := 0; i < n; i++ {
		dx[n+i] = acc.AtVec(i)
	}
	return dx
}

// Advance simulates one step of length dt under the wrench input. On a
// non-finite result the previous state is kept and ErrInvalidState returned.
func (f *ForwardDynamics) Advance(input dynamo.Vector6, dt float64) error {
	f.mu.RLock()
	x, t := f.x, f.t
	f.mu.RUnlock()

	next := f.integ.Step(f, x, input.Control(), t, dt)
	if !next.IsValid() {
		return dynamo.ErrInvalidState
	}

	n := f.chain.NumJoints()
	q, qd := next.Split(n)
	for i := range qd {
		qd[i] *= f.params.Damping
	}
	f.chain.ClampToLimits(q)

	f.mu.Lock()
	f.x = next
	f.t = t + dt
	f.mu.Unlock()
	f.updateKinematics()
	return nil
}

func (f *ForwardDynamics) updateKinematics() {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.chain.NumJoints()
	q, qd := f.x.Split(n)
	jac, ee := f.chain.Jacobian(q)

	var v mat.VecDense
	v.MulVec(jac, mat.NewVecDense(n, append([]float64(nil), qd...)))
	for i := range f.eeVel {
		f.eeVel[i] = v.AtVec(i)
	}
	f.pose = ee
}

// SetStartState resets the simulation to rest at the given joint positions.
func (f *ForwardDynamics) SetStartState(positions []float64) error {
	return f.Sync(positions, nil)
}

// Sync overwrites the simulated joint state with a measured one. Nil
// velocities are treated as zero.
func (f *ForwardDynamics) Sync(positions, velocities []float64) error {
	n := f.chain.NumJoints()
	if len(positions) != n || (velocities != nil && len(velocities) != n) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "expected %d joints, got %d", n, len(positions))
	}
	x := make(dynamo.State, 2*n)
	copy(x, positions)
	copy(x[n:], velocities)
	if !x.IsValid() {
		return dynamo.ErrInvalidState
	}
	f.chain.ClampToLimits(x[:n])

	f.mu.Lock()
	f.x = x
	f.mu.Unlock()
	f.updateKinematics()
	return nil
}

// EndEffectorPose returns the simulated end effector pose in the base frame.
func (f *ForwardDynamics) EndEffectorPose() spatialmath.Pose {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pose
}

// EndEffectorVelocity returns the Cartesian twist J·q̇ of the end effector.
func (f *ForwardDynamics) EndEffectorVelocity() dynamo.Vector6 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.eeVel
}

func (f *ForwardDynamics) Positions() []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, _ := f.x.Split(f.chain.NumJoints())
	return append([]float64(nil), q...)
}

func (f *ForwardDynamics) Velocities() []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, qd := f.x.Split(f.chain.NumJoints())
	return append([]float64(nil), qd...)
}

func (f *ForwardDynamics) Params() Params {
	return f.params
}

func (f *ForwardDynamics) Chain() *Chain {
	return f.chain
}
