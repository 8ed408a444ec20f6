package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asrlab/recscore/pkg/corpus"
	"github.com/asrlab/recscore/pkg/decoder"
)

// UnknownMarker is the out-of-vocabulary token a word-level decoder emits
// for words outside its vocabulary.
const UnknownMarker = "<unk>"

// spliceMarker is the artifact character the external merge function may
// leave around spliced spans. It is stripped before scoring.
const spliceMarker = "*"

// resolveUnknown re-decodes utt at character granularity with a narrowed
// search (beam width 1, no language model) and asks the external resolver
// to splice the character hypothesis into the marker spans of wordHyp.
// Residual splice markers are stripped from the merged text.
func (d *Driver) resolveUnknown(ctx context.Context, utt corpus.Utterance, primary decoder.Hypothesis, wordHyp string) (string, error) {
	charParams := d.recog.Params()
	charParams.BeamWidth = 1
	charParams.LMWeight = 0

	nbests, err := d.decoders[0].Decode(ctx, []corpus.Utterance{utt}, charParams, decoder.Char, nil)
	if err != nil {
		return "", fmt.Errorf("auxiliary char decode: %w", err)
	}
	if len(nbests) != 1 || len(nbests[0]) == 0 {
		return "", errors.New("auxiliary char decode returned no hypothesis")
	}
	charBest := nbests[0][0]

	merged, err := d.resolver.Resolve(
		wordHyp,
		charBest.IDs,
		primary.Attention,
		charBest.Attention,
		d.charMapper,
		d.eval.SubsampleWord,
		d.eval.SubsampleChar,
	)
	if err != nil {
		return "", fmt.Errorf("merge: %w", err)
	}

	return strings.ReplaceAll(merged, spliceMarker, ""), nil
}
