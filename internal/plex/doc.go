// Package plex decodes the subset of the media server's metadata documents the
// proxy cares about: the Part entries of a MediaContainer, each pairing the
// request path used to stream that part with the file backing it on disk.
package plex
