// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"github.com/cellvote/cellvote"
)

func main() {
	cellvote.Main()
}
