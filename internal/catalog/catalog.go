// internal/catalog/catalog.go

// Package catalog loads the immutable card definitions once at startup from
// the card asset directory. Filenames encode the card data:
//
//	Location {N|E} <num>.<ext>  task card, normal or extreme
//	Powerup <num>.<ext>         powerup card
//	Info <num>.<ext>            rule card
//
// The numeric part selects special behavior from the tables below.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trainwreck-game/trainwreck/internal/models"
)

// taskSpecials maps task numbers to their completion branch.
var taskSpecials = map[int]models.TaskSpecial{
	35: models.TaskSpecialFullerton,
	39: models.TaskSpecialMBS,
}

// powerupSpecials maps powerup numbers to their effect.
var powerupSpecials = map[int]models.PowerupSpecial{
	6: models.PowerupSpecialAllOrNothing,
	7: models.PowerupSpecialB1G1F,
}

// powerupSendToChasers lists powerup numbers announced to the other teams on use.
var powerupSendToChasers = map[int]bool{
	1: true, 2: true, 3: true, 4: true, 5: true, 8: true, 9: true,
}

// Catalog is the read-only card set shared by every game in the process.
type Catalog struct {
	cards  []models.Card
	byID   map[int]*models.Card
	nTasks int
	nPower int
	nRules int
}

// Load reads every card file under dir. Files with unrecognized names are
// logged and skipped; an empty result is an error.
func Load(dir string, logger *logrus.Logger) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading card dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	c := &Catalog{byID: make(map[int]*models.Card)}
	for _, name := range names {
		card, err := parseFilename(name)
		if err != nil {
			logger.WithFields(logrus.Fields{"file": name, "error": err}).Warn("skipping card file")
			continue
		}
		card.ID = len(c.cards) + 1
		card.Image = filepath.Join(dir, name)
		c.cards = append(c.cards, card)
		switch card.Kind {
		case models.KindTask:
			c.nTasks++
		case models.KindPowerup:
			c.nPower++
		case models.KindRule:
			c.nRules++
		}
	}
	for i := range c.cards {
		c.byID[c.cards[i].ID] = &c.cards[i]
	}

	if len(c.cards) == 0 {
		return nil, fmt.Errorf("no card files found in %s", dir)
	}
	logger.WithFields(logrus.Fields{
		"tasks": c.nTasks, "powerups": c.nPower, "rules": c.nRules,
	}).Info("card catalog loaded")
	return c, nil
}

func parseFilename(name string) (models.Card, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, " ")

	switch parts[0] {
	case "Location":
		if len(parts) != 3 {
			return models.Card{}, fmt.Errorf("task filename needs 3 fields, got %d", len(parts))
		}
		var diff models.TaskDifficulty
		switch parts[1] {
		case "N":
			diff = models.DifficultyNormal
		case "E":
			diff = models.DifficultyExtreme
		default:
			return models.Card{}, fmt.Errorf("unknown task difficulty %q", parts[1])
		}
		num, err := strconv.Atoi(parts[2])
		if err != nil {
			return models.Card{}, fmt.Errorf("task number: %w", err)
		}
		special, ok := taskSpecials[num]
		if !ok {
			special = models.TaskSpecialNone
		}
		return models.Card{
			Kind:  models.KindTask,
			Title: fmt.Sprintf("Task %d", num),
			Task:  &models.TaskInfo{Difficulty: diff, Special: special},
		}, nil

	case "Powerup":
		if len(parts) != 2 {
			return models.Card{}, fmt.Errorf("powerup filename needs 2 fields, got %d", len(parts))
		}
		num, err := strconv.Atoi(parts[1])
		if err != nil {
			return models.Card{}, fmt.Errorf("powerup number: %w", err)
		}
		special, ok := powerupSpecials[num]
		if !ok {
			special = models.PowerupSpecialNone
		}
		return models.Card{
			Kind:  models.KindPowerup,
			Title: fmt.Sprintf("Powerup %d", num),
			Powerup: &models.PowerupInfo{
				Special:       special,
				SendToChasers: powerupSendToChasers[num],
			},
		}, nil

	case "Info":
		if len(parts) != 2 {
			return models.Card{}, fmt.Errorf("rule filename needs 2 fields, got %d", len(parts))
		}
		num, err := strconv.Atoi(parts[1])
		if err != nil {
			return models.Card{}, fmt.Errorf("rule number: %w", err)
		}
		return models.Card{
			Kind:  models.KindRule,
			Title: fmt.Sprintf("Rule %d", num),
		}, nil
	}
	return models.Card{}, fmt.Errorf("unknown card prefix %q", parts[0])
}

// New builds a catalog directly from card definitions. Intended for tests and
// for callers that source cards from somewhere other than the asset dir.
func New(cards []models.Card) *Catalog {
	c := &Catalog{
		cards: append([]models.Card(nil), cards...),
		byID:  make(map[int]*models.Card),
	}
	for i := range c.cards {
		if c.cards[i].ID == 0 {
			c.cards[i].ID = i + 1
		}
		c.byID[c.cards[i].ID] = &c.cards[i]
		switch c.cards[i].Kind {
		case models.KindTask:
			c.nTasks++
		case models.KindPowerup:
			c.nPower++
		case models.KindRule:
			c.nRules++
		}
	}
	return c
}

// Get returns the card with the given id, or nil.
func (c *Catalog) Get(id int) *models.Card {
	return c.byID[id]
}

// All returns every card in load order.
func (c *Catalog) All() []models.Card {
	return c.cards
}

// NonRule returns every task and powerup card, the set a team ledger tracks.
func (c *Catalog) NonRule() []models.Card {
	out := make([]models.Card, 0, c.nTasks+c.nPower)
	for _, card := range c.cards {
		if card.Kind != models.KindRule {
			out = append(out, card)
		}
	}
	return out
}

// Rules returns the rule cards in load order.
func (c *Catalog) Rules() []models.Card {
	out := make([]models.Card, 0, c.nRules)
	for _, card := range c.cards {
		if card.Kind == models.KindRule {
			out = append(out, card)
		}
	}
	return out
}
