// Package dataio reads network topologies and writes expression data and
// run artifacts as tab-separated text.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"grnsim/internal/model"
)

var ErrMalformedLine = errors.New("malformed topology line")

// ReadTopology parses one edge per line as source, target and an optional
// sign (+, -, +-, ?). A line with a single field declares an isolated gene.
// Blank lines and lines starting with # are skipped. Genes are indexed in
// order of first appearance.
func ReadTopology(r io.Reader, id string) (*model.Network, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	net := model.NewNetwork(id)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		fields := trimFields(record)
		switch len(fields) {
		case 0:
			continue
		case 1:
			net.EnsureNode(fields[0])
		case 2, 3:
			sign := "?"
			if len(fields) == 3 {
				sign = fields[2]
			}
			typ, err := model.ParseEdgeType(sign)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			net.EnsureNode(fields[0])
			net.EnsureNode(fields[1])
			if err := net.AddEdge(fields[0], fields[1], typ); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		default:
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedLine, line, len(fields))
		}
	}
	if net.Size() == 0 {
		return nil, fmt.Errorf("%w: no genes in topology %s", ErrMalformedLine, id)
	}
	net.MarkRegulators()
	return net, nil
}

// WriteTopology writes every edge in the format read by ReadTopology, then
// every gene without edges on a line of its own.
func WriteTopology(w io.Writer, net *model.Network) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	connected := make([]bool, net.Size())
	for _, e := range net.Edges {
		connected[e.Source] = true
		connected[e.Target] = true
		if err := writer.Write([]string{net.Nodes[e.Source].Label, net.Nodes[e.Target].Label, e.Type.String()}); err != nil {
			return err
		}
	}
	for i, node := range net.Nodes {
		if connected[i] {
			continue
		}
		if err := writer.Write([]string{node.Label}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// trimFields drops surrounding whitespace and trailing empty fields.
func trimFields(record []string) []string {
	out := make([]string, 0, len(record))
	for _, f := range record {
		out = append(out, strings.TrimSpace(f))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
