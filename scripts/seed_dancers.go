// seed_dancers.go loads a YAML roster of dancers and imports each one through
// the admin API.
//
// Usage:
//
//	go run scripts/seed_dancers.go -file scripts/dancers.yaml -api http://localhost:8700 -token $CASTING_ADMIN_TOKEN
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type seedDancer struct {
	Name         string             `yaml:"name" json:"name"`
	NameEN       string             `yaml:"name_en" json:"name_en,omitempty"`
	Phone        string             `yaml:"phone" json:"phone,omitempty"`
	Region       string             `yaml:"region" json:"region,omitempty"`
	Genres       []string           `yaml:"genres" json:"genres"`
	Specialty    string             `yaml:"specialty" json:"specialty,omitempty"`
	Bio          string             `yaml:"bio" json:"bio,omitempty"`
	ImageURL     string             `yaml:"image_url" json:"image_url,omitempty"`
	Gender       string             `yaml:"gender" json:"gender,omitempty"`
	Age          int                `yaml:"age" json:"age,omitempty"`
	HeightCm     float64            `yaml:"height" json:"height,omitempty"`
	HairColors   []string           `yaml:"hair_colors" json:"hair_colors,omitempty"`
	InstagramURL string             `yaml:"instagram_url" json:"instagram_url,omitempty"`
	VibeTags     []string           `yaml:"vibe_tags" json:"vibe_tags"`
	PricePerHour int64              `yaml:"price_per_hour" json:"price_per_hour"`
	Rating       float64            `yaml:"rating" json:"rating"`
	IsPremium    bool               `yaml:"is_premium" json:"is_premium"`
	KidsFriendly bool               `yaml:"kids_friendly" json:"kids_friendly"`
	SFXMakeupOK  bool               `yaml:"sfx_makeup_ok" json:"sfx_makeup_ok"`
	Cosplay      bool               `yaml:"cosplay_experience" json:"cosplay_experience"`
	HorrorReady  bool               `yaml:"horror_ready" json:"horror_ready"`
	GamerNerd    bool               `yaml:"gamer_nerd" json:"gamer_nerd"`
	Attributes   map[string]float64 `yaml:"attributes" json:"attributes,omitempty"`
}

type roster struct {
	Dancers []seedDancer `yaml:"dancers"`
}

func main() {
	file := flag.String("file", "scripts/dancers.yaml", "path to the dancer roster")
	apiURL := flag.String("api", "http://localhost:8700", "Casting API base URL")
	token := flag.String("token", os.Getenv("CASTING_ADMIN_TOKEN"), "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "print dancers without posting")
	flag.Parse()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read roster: %v", err)
	}
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		log.Fatalf("parse roster: %v", err)
	}
	log.Printf("parsed %d dancers from %s", len(r.Dancers), *file)

	if *dryRun {
		for i, d := range r.Dancers {
			fmt.Printf("[%d] %s (genres=%s, tags=%s, price=%d)\n", i+1, d.Name,
				strings.Join(d.Genres, ","), strings.Join(d.VibeTags, ","), d.PricePerHour)
		}
		return
	}
	if *token == "" {
		log.Fatal("admin token required (-token or CASTING_ADMIN_TOKEN)")
	}

	client := &http.Client{}
	created, skipped := 0, 0
	for _, d := range r.Dancers {
		body, _ := json.Marshal(d)
		req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*apiURL, "/")+"/api/v1/admin/dancers", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", d.Name, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+*token)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", d.Name, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %q: status %d", d.Name, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}
