package main

import (
	"segmenter/cmd/handlers"
	"segmenter/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
