// Package kgmatrix renders a catalog into the knowledge-graph matrix: the
// tabular snapshot the mapping layer binds its ontology to. One table per
// individual class, one row per individual, properties as columns.
package kgmatrix

import (
	"fmt"
	"sort"
	"strings"

	"parren.ch/candi/pkg/catalog"
)

type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Column naming follows the mapping layer's vocabulary, including the
// historical "bitLenght" spelling the schema-binding step expects.
var (
	signalColumns = []string{"Individual", "rdf:type", "dbc:decodedVia", "dbc:hasReceiver",
		"dbc:isPartOf", "qudt:hasUnit", "sosa:isObservedBy"}
	messageColumns = []string{"Individual", "rdf:type", "dbc:dataLength", "dbc:encodedVia",
		"dbc:hasDecID", "dbc:hasSignal", "dbc:hasTransmitter", "sosa:isObservedBy"}
	encodingColumns = []string{"Individual", "rdf:type", "dbc:bitLenght", "dbc:bitStart",
		"dbc:signed", "qudt:byteOrder", "qudt:conversionMultiplier", "qudt:conversionOffset",
		"qudt:maxInclusive", "qudt:minInclusive"}
	platformColumns = []string{"Individual", "rdf:type", "sosa:hosts"}
	nodeColumns     = []string{"Individual", "rdf:type"}
	sensorColumns   = []string{"Individual", "rdf:type", "sosa:isHostedBy",
		"sosa:madeObservation", "sosa:observes"}
)

// Snapshot produces the full matrix for one catalog: Message, Signal,
// SignalEncoding, Node, Platform and Sensor tables. The platform hosts
// the sniffing sensor, which observes every cataloged message.
func Snapshot(c *catalog.Catalog, platform, sensor string) []Table {
	messages := Table{Name: "Message", Columns: messageColumns}
	signals := Table{Name: "Signal", Columns: signalColumns}
	encodings := Table{Name: "SignalEncoding", Columns: encodingColumns}

	nodes := map[string]bool{}
	for _, n := range c.Nodes {
		nodes[n] = true
	}
	var messageNames []string

	for _, m := range sortedMessages(c) {
		messageNames = append(messageNames, m.Name)
		nodes[m.Transmitter] = true

		var signalNames, encodingNames []string
		for _, s := range m.Signals {
			signalNames = append(signalNames, s.Name)
			encodingNames = append(encodingNames, s.Name+"Encoding")
		}
		messages.Rows = append(messages.Rows, []string{
			m.Name, "dbc:Message",
			fmt.Sprintf("%d", m.Length),
			strings.Join(encodingNames, ", "),
			fmt.Sprintf("%d", m.ID),
			strings.Join(signalNames, ", "),
			m.Transmitter,
			sensor,
		})

		for _, s := range m.Signals {
			receivers := s.Receivers
			if len(receivers) == 0 {
				receivers = []string{catalog.UnknownNode}
			}
			for _, r := range receivers {
				nodes[r] = true
			}
			signals.Rows = append(signals.Rows, []string{
				s.Name, "dbc:Signal",
				s.Name + "Encoding",
				strings.Join(receivers, ", "),
				m.Name,
				s.CanonicalUnit,
				sensor,
			})
			encodings.Rows = append(encodings.Rows, []string{
				s.Name + "Encoding", "dbc:SignalEncoding",
				fmt.Sprintf("%d", s.Length),
				fmt.Sprintf("%d", s.Start),
				fmt.Sprintf("%v", s.IsSigned),
				byteOrder(s),
				formatNumber(s.Scale),
				formatNumber(s.Offset),
				rangeBound(s, s.Max),
				rangeBound(s, s.Min),
			})
		}
	}

	nodeTable := Table{Name: "Node", Columns: nodeColumns}
	for _, n := range sortedKeys(nodes) {
		nodeTable.Rows = append(nodeTable.Rows, []string{n, "dbc:Node"})
	}

	platformTable := Table{Name: "Platform", Columns: platformColumns,
		Rows: [][]string{{platform, "sosa:Platform", sensor}}}

	sensorTable := Table{Name: "Sensor", Columns: sensorColumns,
		Rows: [][]string{{sensor, "sosa:Sensor", platform, "NA", strings.Join(messageNames, ", ")}}}

	return []Table{messages, signals, encodings, platformTable, nodeTable, sensorTable}
}

func byteOrder(s *catalog.Signal) string {
	if s.IsBigEndian {
		return "BigEndian"
	}
	return "LittleEndian"
}

func rangeBound(s *catalog.Signal, v float64) string {
	if !s.HasRange() {
		return ""
	}
	return formatNumber(v)
}

func formatNumber(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
}

func sortedMessages(c *catalog.Catalog) []*catalog.Message {
	ms := make([]*catalog.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
	return ms
}

func sortedKeys(set map[string]bool) []string {
	ks := make([]string, 0, len(set))
	for k := range set {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
