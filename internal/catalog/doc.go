// Package catalog loads the tracks offered for download, either from a
// track list file or from URLs given on the command line.
package catalog
