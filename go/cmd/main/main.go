package main

import (
	"github.com/lunixbochs/binload/go/cmd"

	_ "github.com/lunixbochs/binload/go/cmd/dump"
	_ "github.com/lunixbochs/binload/go/cmd/info"
	_ "github.com/lunixbochs/binload/go/cmd/sym"
)

func main() { cmd.Main() }
