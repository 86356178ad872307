package noetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ScenarioSuite exercises the end-to-end behaviors the engine must satisfy
// as a whole (§8 concrete scenarios), grouped with testify's suite runner the
// way the teacher's own integration tests group related API-level checks.
type ScenarioSuite struct {
	suite.Suite
	engine *Engine
}

func (s *ScenarioSuite) SetupTest() {
	s.engine = New(DefaultConfig(), nil, 42)
}

// S1: a cold engine with no teaching input answers with the fixed fallback,
// never an error or a panic.
func (s *ScenarioSuite) TestColdStartFallback() {
	out, err := s.engine.Answer(context.Background(), "anything", ModeBalanced)
	s.NoError(err)
	s.Equal("I don't know yet.", out)
}

// S2: teaching the same fact repeatedly drives its edge's CoreWeight
// monotonically toward 1 without ever exceeding it.
func (s *ScenarioSuite) TestRepeatedTeachingSaturatesCoreWeight() {
	for i := 0; i < 10; i++ {
		s.Require().NoError(s.engine.Learn("owls hunt mice"))
	}
	owls := s.engine.store.InsertOrFetchNode("owls")
	mice := s.engine.store.InsertOrFetchNode("mice")
	e, ok := s.engine.store.Find(owls, mice, RelationTemporal)
	s.Require().True(ok)
	s.LessOrEqual(e.CoreWeight, 1.0)
	s.Greater(e.CoreWeight, 0.0)
}

// S3: a query whose tokens are already in the graph produces a non-fallback
// phrase once enough structure exists to walk.
func (s *ScenarioSuite) TestAnswerUsesTaughtStructure() {
	s.Require().NoError(s.engine.Learn("ravens are clever"))
	s.Require().NoError(s.engine.Learn("ravens solve puzzles"))
	out, err := s.engine.Answer(context.Background(), "ravens", ModeBalanced)
	s.NoError(err)
	s.NotEmpty(out)
}

// S4: the engine degrades on an invariant violation and refuses further
// calls until Reset restores it.
func (s *ScenarioSuite) TestDegradeThenReset() {
	s.engine.degraded = true
	_, err := s.engine.Answer(context.Background(), "x", ModeBalanced)
	s.ErrorIs(err, ErrDegraded)
	s.ErrorIs(s.engine.Learn("x"), ErrDegraded)

	s.engine.Reset()
	out, err := s.engine.Answer(context.Background(), "x", ModeBalanced)
	s.NoError(err)
	s.Equal("I don't know yet.", out)
}

// S5: an out-of-range evolution parameter is rejected and leaves the prior
// value untouched.
func (s *ScenarioSuite) TestSetEvolutionParamOutOfRangeLeavesStateUnchanged() {
	before := s.engine.cfg.Alpha
	err := s.engine.SetEvolutionParam("alpha", 1e9)
	s.ErrorIs(err, ErrParamOutOfRange)
	s.Equal(before, s.engine.cfg.Alpha)
}

// S6: export/import round-trips engine state with no intervening mutation,
// and the restored engine answers the same query without error.
func (s *ScenarioSuite) TestSnapshotRoundTripThenAnswer() {
	s.Require().NoError(s.engine.Learn("foxes eat rabbits"))
	data, err := s.engine.Export()
	s.Require().NoError(err)

	restored, err := Import(data, nil, 99)
	s.Require().NoError(err)

	out, err := restored.Answer(context.Background(), "foxes", ModeBalanced)
	s.NoError(err)
	s.NotEmpty(out)
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}
