package scripted

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/smhanov/multistep"
)

// Script is the YAML form of a scripted run:
//
//	query: Where did the founder of X do Y?
//	index_summary: Essays by the founder.
//	max_steps: 3
//	decomposer:
//	  - question: Who founded X?
//	  - question: None
//	answers:
//	  - text: Paul founded X.
//	    evidence:
//	      - source: essay.txt
//	        score: 0.8
//	synthesis: Paul did Y in Cambridge.
type Script struct {
	Query        string        `yaml:"query"`
	IndexSummary string        `yaml:"index_summary"`
	MaxSteps     *int          `yaml:"max_steps"`
	Decomposer   []scriptTurn  `yaml:"decomposer"`
	Answers      []scriptReply `yaml:"answers"`
	Synthesis    string        `yaml:"synthesis"`
}

type scriptTurn struct {
	Question string `yaml:"question"`
	Error    string `yaml:"error"`
}

type scriptReply struct {
	Text     string                       `yaml:"text"`
	Evidence []multistep.EvidenceFragment `yaml:"evidence"`
	Error    string                       `yaml:"error"`
}

// Load decodes a script from r.
func Load(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("decode script: %w", err)
	}
	if len(s.Decomposer) == 0 {
		return Script{}, errors.New("script has no decomposer turns")
	}
	return s, nil
}

// LoadFile decodes the script stored at path.
func LoadFile(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, err
	}
	defer f.Close()
	return Load(f)
}

// NewDecomposer builds the scripted decomposer.
func (s Script) NewDecomposer() *Decomposer {
	turns := make([]Turn, len(s.Decomposer))
	for i, t := range s.Decomposer {
		turns[i] = Turn{Question: t.Question}
		if t.Error != "" {
			turns[i].Err = errors.New(t.Error)
		}
	}
	return NewDecomposer(turns...)
}

// NewEngine builds the scripted answer engine.
func (s Script) NewEngine() *Engine {
	replies := make([]Reply, len(s.Answers))
	for i, a := range s.Answers {
		replies[i] = Reply{Answer: multistep.Answer{Text: a.Text, Evidence: a.Evidence}}
		if a.Error != "" {
			replies[i].Err = errors.New(a.Error)
		}
	}
	return NewEngine(replies...)
}

// NewSynthesizer builds the scripted synthesizer.
func (s Script) NewSynthesizer() *Synthesizer {
	return NewSynthesizer(s.Synthesis)
}

// Request returns the multistep request described by the script, using engine.
func (s Script) Request(engine multistep.AnswerEngine) multistep.Request {
	return multistep.Request{
		Query:        s.Query,
		IndexSummary: s.IndexSummary,
		MaxSteps:     s.MaxSteps,
		Engine:       engine,
	}
}
