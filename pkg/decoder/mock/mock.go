// Package mock provides test doubles for the decoder package interfaces.
//
// Use Decoder to script per-utterance n-best output keyed by utterance ID
// and to inspect the parameters and granularities the scoring driver decoded
// with. Use Resolver to script merge results for unknown-token resolution.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/asrlab/recscore/pkg/corpus"
	"github.com/asrlab/recscore/pkg/decoder"
)

// DecodeCall records a single invocation of Decoder.Decode.
type DecodeCall struct {
	// UttIDs are the IDs of the utterances in the decoded batch, in order.
	UttIDs []string
	// Params are the recognition parameters passed to Decode.
	Params decoder.Params
	// Granularity is the token granularity requested.
	Granularity decoder.Granularity
	// Ensemble is the number of auxiliary ensemble members passed in.
	Ensemble int
}

// Decoder is a mock implementation of decoder.Decoder. Output is scripted
// per utterance ID and per granularity.
type Decoder struct {
	mu sync.Mutex

	// Word maps utterance ID to the n-best list returned for word-level
	// decodes of that utterance.
	Word map[string]decoder.NBest

	// Char maps utterance ID to the n-best list returned for char-level
	// decodes of that utterance.
	Char map[string]decoder.NBest

	// DecodeErr, if non-nil, is returned by Decode for the granularities
	// listed in DecodeErrGran (or for all granularities when empty).
	DecodeErr     error
	DecodeErrGran decoder.Granularity

	// StreamingErr, if non-nil, is returned by DecodeStreaming.
	StreamingErr error

	// DecodeCalls records every call to Decode.
	DecodeCalls []DecodeCall

	// StreamingCalls counts calls to DecodeStreaming.
	StreamingCalls int
}

var _ decoder.Decoder = (*Decoder)(nil)

// Decode returns the scripted n-best list for every utterance in utts.
// Unscripted utterances produce an error.
func (d *Decoder) Decode(ctx context.Context, utts []corpus.Utterance, params decoder.Params, gran decoder.Granularity, ensemble []decoder.Decoder) ([]decoder.NBest, error) {
	d.mu.Lock()
	call := DecodeCall{Params: params, Granularity: gran, Ensemble: len(ensemble)}
	for _, u := range utts {
		call.UttIDs = append(call.UttIDs, u.ID)
	}
	d.DecodeCalls = append(d.DecodeCalls, call)
	d.mu.Unlock()

	if d.DecodeErr != nil && (d.DecodeErrGran == "" || d.DecodeErrGran == gran) {
		return nil, d.DecodeErr
	}

	script := d.Word
	if gran == decoder.Char {
		script = d.Char
	}
	out := make([]decoder.NBest, len(utts))
	for i, u := range utts {
		nb, ok := script[u.ID]
		if !ok {
			return nil, fmt.Errorf("mock: no scripted %s output for utterance %q", gran, u.ID)
		}
		out[i] = nb
	}
	return out, nil
}

// DecodeStreaming returns the first scripted word-level hypothesis for every
// utterance in utts.
func (d *Decoder) DecodeStreaming(ctx context.Context, utts []corpus.Utterance, params decoder.Params) ([]decoder.Hypothesis, error) {
	d.mu.Lock()
	d.StreamingCalls++
	d.mu.Unlock()

	if d.StreamingErr != nil {
		return nil, d.StreamingErr
	}
	out := make([]decoder.Hypothesis, len(utts))
	for i, u := range utts {
		nb, ok := d.Word[u.ID]
		if !ok || len(nb) == 0 {
			return nil, fmt.Errorf("mock: no scripted streaming output for utterance %q", u.ID)
		}
		h := nb[0]
		// Streaming decoding never yields attention weights.
		out[i] = decoder.Hypothesis{IDs: h.IDs}
	}
	return out, nil
}

// ResolveCall records a single invocation of Resolver.Resolve.
type ResolveCall struct {
	WordHyp       string
	CharIDs       []int
	SubsampleWord int
	SubsampleChar int
}

// Resolver is a mock implementation of decoder.Resolver returning a fixed
// merged text.
type Resolver struct {
	mu sync.Mutex

	// Merged is the text returned by Resolve.
	Merged string

	// Err, if non-nil, is returned instead of Merged.
	Err error

	// Calls records every call to Resolve.
	Calls []ResolveCall
}

var _ decoder.Resolver = (*Resolver)(nil)

// Resolve records the call and returns Merged, Err.
func (r *Resolver) Resolve(wordHyp string, charIDs []int, wordAttention, charAttention [][]float64, mapper decoder.TokenMapper, subsampleWord, subsampleChar int) (string, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, ResolveCall{
		WordHyp:       wordHyp,
		CharIDs:       charIDs,
		SubsampleWord: subsampleWord,
		SubsampleChar: subsampleChar,
	})
	r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	return r.Merged, nil
}
