package main

import (
	"log"
	"os"

	"go-tenant-rbac-service/internal/di"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runner, err := di.InitializeMigrationRunner()
			if err != nil {
				log.Fatal(err)
			}
			if err := runner.Run(); err != nil {
				log.Fatal(err)
			}
			return
		case "seed":
			runner, err := di.InitializeSeedRunner()
			if err != nil {
				log.Fatal(err)
			}
			report, err := runner.Run()
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("seed complete: %+v", report)
			return
		}
	}

	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}
	if err := a.Run(); err != nil {
		log.Fatal(err)
	}
}
