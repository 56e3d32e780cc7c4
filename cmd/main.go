package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vedantsingh72/Gatepass/config"
	"github.com/vedantsingh72/Gatepass/database"
	"github.com/vedantsingh72/Gatepass/routes"
)

func main() {
	_ = godotenv.Load() // optional .env for local runs

	cfg := config.Load()

	// early fail if the DB is not up
	database.Connect(cfg)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	routes.Register(e, cfg)

	addr := ":" + cfg.AppPort
	log.Printf("server listening at %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
