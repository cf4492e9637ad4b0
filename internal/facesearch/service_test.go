package facesearch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"eventpilot/internal/config"
	"eventpilot/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedComparer answers by the target's content and records call order.
type scriptedComparer struct {
	answers map[string]Comparison
	fail    map[string]error
	calls   []string
}

func (c *scriptedComparer) Compare(_ context.Context, _, target []byte, threshold float32) (Comparison, error) {
	key := string(target)
	c.calls = append(c.calls, key)
	if threshold != DefaultThreshold {
		return Comparison{}, errors.New("unexpected threshold")
	}
	if err, ok := c.fail[key]; ok {
		return Comparison{}, err
	}
	return c.answers[key], nil
}

func writeFiles(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func newService(cmp Comparer, dir string) *Service {
	s := NewService(cmp, config.FaceSearchConfig{ImagesDir: dir}, logger.NewWithWriter(io.Discard, "debug"))
	s.MaxImageSize = 64
	return s
}

func TestSearchSortsMatchesAndCountsSkips(t *testing.T) {
	dir := writeFiles(t, map[string][]byte{
		"a.jpg":     []byte("a"),
		"b.PNG":     []byte("b"),
		"c.jpeg":    []byte("c"),
		"d.jpg":     []byte("d"),
		"huge.jpg":  bytes.Repeat([]byte("x"), 65),
		"notes.txt": []byte("ignored"),
	})
	cmp := &scriptedComparer{answers: map[string]Comparison{
		"a": {Match: true, Similarity: 85.5},
		"b": {Match: true, Similarity: 99.1},
		"c": {Reason: ReasonNoFace},
		"d": {},
	}}

	res, err := newService(cmp, dir).Search(context.Background(), []byte("ref"))
	require.NoError(t, err)
	assert.Equal(t, []Match{{Filename: "b.PNG", Similarity: 99.1}, {Filename: "a.jpg", Similarity: 85.5}}, res.Matches)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Skipped, "one oversized file and one without a face")
	assert.Equal(t, []string{"a", "b", "c", "d"}, cmp.calls, "files are compared one by one in directory order")
}

func TestSearchNoMatchesIsEmptyList(t *testing.T) {
	dir := writeFiles(t, map[string][]byte{"a.jpg": []byte("a")})
	res, err := newService(&scriptedComparer{}, dir).Search(context.Background(), []byte("ref"))
	require.NoError(t, err)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 1, res.Total)
}

func TestSearchErrors(t *testing.T) {
	ctx := context.Background()
	dir := writeFiles(t, map[string][]byte{"a.jpg": []byte("a"), "b.jpg": []byte("b")})

	_, err := newService(nil, dir).Search(ctx, []byte("ref"))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = newService(&scriptedComparer{}, dir).Search(ctx, nil)
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = newService(&scriptedComparer{}, dir).Search(ctx, bytes.Repeat([]byte("r"), 65))
	assert.ErrorIs(t, err, ErrReferenceTooLarge)

	_, err = newService(&scriptedComparer{}, filepath.Join(dir, "missing")).Search(ctx, []byte("ref"))
	assert.ErrorIs(t, err, ErrDirMissing)

	_, err = newService(&scriptedComparer{}, writeFiles(t, map[string][]byte{"x.gif": []byte("x")})).Search(ctx, []byte("ref"))
	assert.ErrorIs(t, err, ErrNoImages)

	cmp := &scriptedComparer{fail: map[string]error{"a": errors.New("throttled")}}
	_, err = newService(cmp, dir).Search(ctx, []byte("ref"))
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Equal(t, []string{"a"}, cmp.calls, "a hard failure stops the scan")
}

type fakeRekognition struct {
	out *rekognition.CompareFacesOutput
	err error
	in  *rekognition.CompareFacesInput
}

func (f *fakeRekognition) CompareFaces(_ context.Context, in *rekognition.CompareFacesInput, _ ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestRekognitionComparer(t *testing.T) {
	ctx := context.Background()

	api := &fakeRekognition{out: &rekognition.CompareFacesOutput{FaceMatches: []types.CompareFacesMatch{
		{Similarity: aws.Float32(93.2)},
		{Similarity: aws.Float32(81)},
	}}}
	got, err := (&RekognitionComparer{Client: api}).Compare(ctx, []byte("src"), []byte("dst"), 80)
	require.NoError(t, err)
	assert.Equal(t, Comparison{Match: true, Similarity: 93.2}, got)
	assert.Equal(t, float32(80), aws.ToFloat32(api.in.SimilarityThreshold))
	assert.Equal(t, []byte("dst"), api.in.TargetImage.Bytes)

	got, err = (&RekognitionComparer{Client: &fakeRekognition{out: &rekognition.CompareFacesOutput{}}}).Compare(ctx, nil, nil, 80)
	require.NoError(t, err)
	assert.False(t, got.Match)
	assert.Empty(t, got.Reason)

	for err, reason := range map[error]string{
		&types.InvalidParameterException{Message: aws.String("no face")}: ReasonNoFace,
		&types.ImageTooLargeException{}:                                 ReasonImageTooLarge,
		&types.InvalidImageFormatException{}:                            ReasonInvalidFormat,
	} {
		got, cerr := (&RekognitionComparer{Client: &fakeRekognition{err: err}}).Compare(ctx, nil, nil, 80)
		require.NoError(t, cerr)
		assert.Equal(t, reason, got.Reason)
	}

	_, err = (&RekognitionComparer{Client: &fakeRekognition{err: errors.New("access denied")}}).Compare(ctx, nil, nil, 80)
	assert.Error(t, err)
}

func TestNewRekognitionComparerDisabled(t *testing.T) {
	c, err := NewRekognitionComparer(context.Background(), config.AWSConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}
