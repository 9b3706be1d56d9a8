// Package compiler turns an XML format description into the descriptor IR
// the record engine runs on. Each format ships an embedded description;
// a <FORMAT>XMLPATH environment variable points at an alternate file for
// people maintaining the descriptions out of tree. Loading happens once per
// format at first use, never on the read/write hot path.
package compiler
