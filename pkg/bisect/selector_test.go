package bisect

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWindow(t *testing.T) {
	catalog := []string{"1.0", "1.1", "1.2", "1.3", "1.4", "1.5"}

	values := []struct {
		name      string
		judgments map[string]Status
		local     []string

		expectedGood       int
		expectedBad        int
		expectedCandidates []int
		expectedLocal      []int
		expectedSkipped    []int
		expectedErr        error
	}{
		{"Initial window", map[string]Status{"1.0": Good, "1.5": Bad}, nil, 0, 5, []int{1, 2, 3, 4}, nil, nil, nil},
		{"Narrowed by bad", map[string]Status{"1.0": Good, "1.5": Bad, "1.3": Bad}, nil, 0, 3, []int{1, 2}, nil, nil, nil},
		{"Narrowed by good", map[string]Status{"1.0": Good, "1.5": Bad, "1.2": Good}, nil, 2, 5, []int{3, 4}, nil, nil, nil},
		{"Unjudged outside of window", map[string]Status{"1.1": Good, "1.4": Bad}, nil, 1, 4, []int{2, 3}, nil, nil, nil},
		{"Local candidates", map[string]Status{"1.0": Good, "1.5": Bad}, []string{"1.0", "1.2", "1.4"}, 0, 5, []int{1, 2, 3, 4}, []int{2, 4}, nil, nil},
		{"Skipped versions", map[string]Status{"1.0": Good, "1.5": Bad, "1.2": Skip}, nil, 0, 5, []int{1, 3, 4}, nil, []int{2}, nil},
		{"Skip before good", map[string]Status{"1.0": Skip, "1.1": Good, "1.5": Bad}, nil, 1, 5, []int{2, 3, 4}, nil, nil, nil},
		{"Skip after bad", map[string]Status{"1.0": Good, "1.3": Bad, "1.4": Skip}, nil, 0, 3, []int{1, 2}, nil, nil, nil},
		{"Pinpointed", map[string]Status{"1.0": Good, "1.2": Good, "1.3": Bad, "1.5": Bad}, nil, 2, 3, nil, nil, nil, nil},
		{"Bad before good", map[string]Status{"1.1": Bad, "1.4": Good}, nil, 0, 0, nil, nil, nil, ErrOrderingViolation},
		{"Good after bad", map[string]Status{"1.0": Good, "1.2": Bad, "1.4": Good}, nil, 0, 0, nil, nil, nil, ErrOrderingViolation},
		{"No bad listed", map[string]Status{"1.0": Good, "9.9": Bad}, nil, 0, 0, nil, nil, nil, ErrBoundaryNotFound},
		{"No good listed", map[string]Status{"0.9": Good, "1.5": Bad}, nil, 0, 0, nil, nil, nil, ErrBoundaryNotFound},
		{"Nothing listed", map[string]Status{"0.9": Good, "9.9": Bad}, nil, 0, 0, nil, nil, nil, ErrBoundaryNotFound},
	}

	for _, v := range values {
		t.Run(v.name, func(t *testing.T) {
			w := newFakeWorld(catalog, v.local...)
			versions, err := w.Versions(context.Background(), "node")
			require.NoError(t, err)

			window, err := scanWindow(versions, v.judgments)
			if v.expectedErr != nil {
				assert.ErrorIs(t, err, v.expectedErr, "scanWindow returned wrong error")
				return
			}
			require.NoError(t, err, "scanWindow returned an error")

			assert.Equal(t, v.expectedGood, window.lastGood, "Wrong good boundary")
			assert.Equal(t, v.expectedBad, window.firstBad, "Wrong bad boundary")
			assert.Equal(t, v.expectedCandidates, window.candidates, "Wrong candidates")
			assert.Equal(t, v.expectedLocal, window.local, "Wrong local candidates")
			assert.Equal(t, v.expectedSkipped, window.skipped, "Wrong skipped versions")
		})
	}
}

func TestPick(t *testing.T) {
	values := []struct {
		candidates []int
		local      []int

		expectedIndex int
	}{
		{[]int{1}, nil, 1},
		{[]int{1, 2}, nil, 2},
		{[]int{1, 2, 3}, nil, 2},
		{[]int{1, 2, 3, 4}, nil, 3},
		{[]int{1, 2, 3, 4}, []int{4}, 4},
		{[]int{1, 2, 3, 4}, []int{1, 4}, 4},
		{[]int{1, 2, 3, 4, 5, 6, 7}, []int{1, 2, 6}, 2},
	}

	for i, v := range values {
		w := searchWindow{candidates: v.candidates, local: v.local}
		assert.Equalf(t, v.expectedIndex, w.pick(), "pick returned wrong index for test %d; candidates: %v, local: %v", i, v.candidates, v.local)
	}
}

func TestSkipDoesNotChangeWindow(t *testing.T) {
	withSkipped := newFakeWorld([]string{"1.0", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6"})
	withoutSkipped := newFakeWorld([]string{"1.0", "1.1", "1.3", "1.4", "1.5", "1.6"})

	versionsOf := func(w *fakeWorld, judgments map[string]Status) []string {
		versions, err := w.Versions(context.Background(), "node")
		require.NoError(t, err)
		window, err := scanWindow(versions, judgments)
		require.NoError(t, err)

		candidates := []string{versions[window.lastGood].SemanticVersion}
		for _, i := range window.candidates {
			candidates = append(candidates, versions[i].SemanticVersion)
		}
		candidates = append(candidates, versions[window.firstBad].SemanticVersion, versions[window.pick()].SemanticVersion)
		return candidates
	}

	assert.Equal(t,
		versionsOf(withoutSkipped, map[string]Status{"1.0": Good, "1.6": Bad}),
		versionsOf(withSkipped, map[string]Status{"1.0": Good, "1.6": Bad, "1.2": Skip}),
		"Skipped version changed the search window")
}

func TestResultString(t *testing.T) {
	ref := func(v string) VersionRef { return VersionRef{RemoteName: "node", SemanticVersion: v, Arch: "x64"} }

	values := []struct {
		result   Result
		expected string
	}{
		{Result{Regression: &Regression{FirstBad: ref("1.3"), LastGood: ref("1.2")}}, "Broken by 1.3, last good version: 1.2"},
		{Result{Regression: &Regression{FirstBad: ref("1.3"), LastGood: ref("1.0"), Skipped: []VersionRef{ref("1.1"), ref("1.2")}}}, "Only skipped versions are left to test. Broken by any of 1.1, 1.2, 1.3, last good version: 1.0"},
		{Result{Candidate: &Candidate{Version: ref("1.3"), LastGood: ref("1.0"), FirstBad: ref("1.5"), Remaining: 4, StepsLeft: 2}}, "Bisecting between good 1.0 and bad 1.5: 4 versions left to test (roughly 2 steps)\nSwitched to 1.3"},
		{Result{Candidate: &Candidate{Version: ref("1.3"), LastGood: ref("1.0"), FirstBad: ref("1.5"), Remaining: 4, StepsLeft: 2, Downloaded: true}}, "Bisecting between good 1.0 and bad 1.5: 4 versions left to test (roughly 2 steps)\nInstalled and switched to 1.3"},
		{Result{}, ""},
	}

	for _, v := range values {
		assert.Equal(t, v.expected, v.result.String(), "Wrong result message")
	}
}

func TestConvergence(t *testing.T) {
	for _, size := range []int{2, 3, 4, 7, 16, 33} {
		for regression := 1; regression < size; regression++ {
			versions := versionRange(1, size)
			w := newFakeWorld(versions)
			b := w.bisector()
			ctx := context.Background()

			require.NoError(t, b.Start())
			w.use(versions[0])
			res, err := b.Mark(ctx, Good)
			require.NoError(t, err)
			require.Nil(t, res, "Selection ran without a bad judgment")

			w.use(versions[size-1])
			res, err = b.Mark(ctx, Bad)
			require.NoError(t, err)

			rounds := 1
			for res.Regression == nil && rounds <= size {
				index := indexOf(versions, res.Candidate.Version.SemanticVersion)
				assert.Greater(t, index, indexOf(versions, res.Candidate.LastGood.SemanticVersion), "Candidate outside of window")
				assert.Less(t, index, indexOf(versions, res.Candidate.FirstBad.SemanticVersion), "Candidate outside of window")
				assert.Equal(t, res.Candidate.Version.SemanticVersion, w.active.SemanticVersion, "Candidate was not activated")

				status := Good
				if index >= regression {
					status = Bad
				}
				res, err = b.Mark(ctx, status)
				require.NoError(t, err)
				rounds++
			}

			require.NotNil(t, res.Regression, "Bisection of %d versions did not terminate", size)
			assert.Equalf(t, versions[regression], res.Regression.FirstBad.SemanticVersion, "Wrong first bad version for size %d", size)
			assert.Equalf(t, versions[regression-1], res.Regression.LastGood.SemanticVersion, "Wrong last good version for size %d", size)
			assert.LessOrEqualf(t, rounds, int(math.Ceil(math.Log2(float64(size))))+1, "Too many rounds for size %d, regression %d", size, regression)
		}
	}
}

func indexOf(versions []string, version string) int {
	for i, v := range versions {
		if v == version {
			return i
		}
	}
	return -1
}
