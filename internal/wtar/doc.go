// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package wtar packs file trees into checksum-gated, optionally split archives and unpacks them again.
//
// An archive is a bzip2 compressed PAX tar stream. The first header is a global header carrying the
// total checksum of the packed tree, so the checksum of an existing archive can be read without
// extracting it. Every file and symlink entry carries its own checksum record and the modification
// time of its source, which makes packing an unchanged tree reproducible.
//
// Archives larger than a split threshold are stored as parts named <name>.wtar.aa, <name>.wtar.ab and
// so on. The parts concatenated in suffix order form the archive stream.
package wtar
