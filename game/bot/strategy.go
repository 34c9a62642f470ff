package bot

import (
	"math/rand/v2"
	"strings"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/round"
	"github.com/wricardo/stop-ultra/game/service"
	"github.com/wricardo/stop-ultra/game/session"
)

// Move is one intent a strategy wants sent. The zero Move means wait.
type Move struct {
	Action   protocol.Action
	Answer   string
	WinnerID string
}

// Strategy decides the next move from what the client currently sees
type Strategy interface {
	NextMove(snap *service.Snapshot) Move
}

// words is a small bank of common Spanish words by initial letter
var words = map[string][]string{
	"A": {"Avión", "Anillo", "Ardilla", "Alemania"},
	"B": {"Ballena", "Barco", "Botella", "Bogotá"},
	"C": {"Casa", "Caballo", "Cuchillo", "Chile"},
	"D": {"Delfín", "Dado", "Dentista", "Dinamarca"},
	"E": {"Elefante", "Escoba", "España", "Enfermera"},
	"F": {"Foca", "Fresa", "Francia", "Fútbol"},
	"G": {"Gato", "Guitarra", "Grande", "Granada"},
	"H": {"Hacha", "Hormiga", "Holanda", "Helado"},
	"I": {"Iguana", "Italia", "Isla", "Ingeniero"},
	"J": {"Jirafa", "Jamón", "Japón", "Jardinero"},
	"L": {"León", "Lima", "Libro", "Lechuga"},
	"M": {"Martillo", "Mono", "México", "Manzana"},
	"N": {"Nariz", "Noruega", "Naranja", "Natación"},
	"O": {"Oso", "Oveja", "Oboe", "Oreja"},
	"P": {"Perro", "Perú", "Pala", "Panadero"},
	"Q": {"Queso", "Quito", "Química", "Quirófano"},
	"R": {"Ratón", "Roma", "Rojo", "Rugby"},
	"S": {"Serpiente", "Sierra", "Suecia", "Sandía"},
	"T": {"Tigre", "Toronto", "Tomate", "Tenis"},
	"U": {"Uva", "Uruguay", "Urraca", "Uña"},
	"V": {"Vaca", "Venezuela", "Violín", "Voleibol"},
	"X": {"Xilófono"},
	"Y": {"Yegua", "Yate", "Yogur", "Yunque"},
	"Z": {"Zorro", "Zapato", "Zaragoza", "Zanahoria"},
}

// Casual plays every role without trying to win: it answers with a word
// starting with the letter and, as moderator, picks a random answer
type Casual struct {
	rng *rand.Rand
}

// NewCasual creates a Casual strategy. A nil rng uses a random seed.
func NewCasual(rng *rand.Rand) *Casual {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Casual{rng: rng}
}

func (c *Casual) NextMove(snap *service.Snapshot) Move {
	if snap == nil || snap.Screen != session.ScreenGame {
		return Move{}
	}

	switch v := snap.View.(type) {
	case round.PreparingView:
		if !snap.IsModerator || snap.Spinning {
			return Move{}
		}
		if v.Letter == "" {
			return Move{Action: protocol.ActionSpin}
		}
		return Move{Action: protocol.ActionStartRound}

	case round.PlayingView:
		if snap.IsModerator || snap.Submitted || v.Letter == "" {
			return Move{}
		}
		return Move{Action: protocol.ActionSubmitAnswer, Answer: c.word(v.Letter)}

	case round.EvaluatingView:
		if !snap.IsModerator {
			return Move{}
		}
		if len(v.Answers) == 0 {
			return Move{Action: protocol.ActionRestartRound}
		}
		pick := v.Answers[c.rng.IntN(len(v.Answers))]
		return Move{Action: protocol.ActionSelectWinner, WinnerID: pick.ClientID}

	case round.ScoresView:
		if snap.IsModerator && !v.Final {
			return Move{Action: protocol.ActionContinueGame}
		}
	}

	return Move{}
}

func (c *Casual) word(letter string) string {
	letter = strings.ToUpper(letter)
	bank := words[letter]
	if len(bank) == 0 {
		return letter
	}
	return bank[c.rng.IntN(len(bank))]
}
