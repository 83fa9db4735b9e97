package crex

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func textOr(s *goquery.Selection, fallback string) string {
	if s.Length() == 0 {
		return fallback
	}
	if t := text(s.First()); t != "" {
		return t
	}
	return fallback
}

// ownText returns the first non-empty text node directly under the selection,
// skipping child elements (the site nests spans inside headings).
func ownText(s *goquery.Selection) string {
	var out string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				out = t
				return false
			}
		}
		return true
	})
	return out
}

func parseLiveMatches(doc *goquery.Document, baseURL string) []LiveMatch {
	var matches []LiveMatch

	doc.Find("a[href]").Each(func(_ int, card *goquery.Selection) {
		info := card.Find("h3.match-number")
		if info.Length() == 0 {
			return
		}

		number := ownText(info.First())
		venue := textOr(info.Find("span").Last(), NA)

		teams := card.Find("div.team-score")
		if teams.Length() < 2 {
			return
		}
		team1 := teams.Eq(0)
		team2 := teams.Eq(1)

		safe := func(el *goquery.Selection, sel string) string {
			return textOr(el.Find(sel), "Yet to bat")
		}
		m := LiveMatch{
			Match:      number,
			Venue:      venue,
			Team1:      safe(team1, "span.live-c"),
			Team1Score: safe(team1, "span.match-score"),
			Team1Overs: safe(team1, "span.match-over"),
			Team2:      safe(team2, "span.live-d"),
			Team2Score: safe(team2, "span.match-score"),
			Team2Overs: safe(team2, "span.match-over"),
		}

		if notStarted(m.Team1Score, m.Team1Overs) && notStarted(m.Team2Score, m.Team2Overs) {
			return
		}

		m.Status = textOr(card.Find("span.comment"), "Live")

		href, _ := card.Attr("href")
		m.URL = baseURL + href

		matches = append(matches, m)
	})

	return matches
}

func notStarted(score, overs string) bool {
	overs = strings.TrimSpace(overs)
	return score == "Yet to bat" || score == "" || overs == "" || strings.HasPrefix(overs, "0")
}

func parseMatchSummary(doc *goquery.Document) *MatchSnapshot {
	snap := &MatchSnapshot{
		Team:  textOr(doc.Find(".team-name.team-1"), NA),
		Score: textOr(doc.Find(".team-score .runs span:nth-of-type(1)"), NA),
		Overs: textOr(doc.Find(".team-score .runs span:nth-of-type(2)"), NA),
		CRR:   NA,
		RRR:   "YET TO BAT",
	}

	status := doc.Find("div.final-result")
	if status.Length() == 0 {
		status = doc.Find("div.comment")
	}
	snap.Status = textOr(status, NA)

	doc.Find("span.title").Each(func(_ int, s *goquery.Selection) {
		switch {
		case strings.Contains(s.Text(), "CRR"):
			if v := s.Find("span.data"); v.Length() > 0 {
				snap.CRR = text(v.First())
			}
		case strings.Contains(s.Text(), "RRR"):
			if v := s.Find("span.data"); v.Length() > 0 {
				snap.RRR = text(v.First())
			}
		}
	})

	snap.Partnership = textOr(doc.Find(".p-ship span:nth-of-type(2)"), NA)
	snap.LastWicket = textOr(doc.Find(".l-wicket"), NA)

	doc.Find(".result-box span").Each(func(_ int, s *goquery.Selection) {
		if t := text(s); t != "" {
			snap.BallEvents = append(snap.BallEvents, t)
		}
	})

	return snap
}

func parsePlayerStats(doc *goquery.Document) *PlayerStats {
	stats := &PlayerStats{}
	blocks := doc.Find("div.batsmen-partnership")

	// First two blocks are the batters at the crease.
	blocks.Slice(0, min(2, blocks.Length())).Each(func(_ int, b *goquery.Selection) {
		p := Player{
			Name:       text(b.Find("div.batsmen-name")),
			Runs:       "0",
			Balls:      "0",
			Fours:      NA,
			Sixes:      NA,
			StrikeRate: NA,
		}
		parts := strings.Fields(text(b.Find("div.batsmen-score")))
		if len(parts) > 0 {
			p.Runs = parts[0]
		}
		if len(parts) > 1 {
			p.Balls = strings.Trim(parts[1], "()")
		}

		spans := b.Find("div.player-strike-wrapper span")
		if spans.Length() >= 6 {
			p.Fours = text(spans.Eq(1))
			p.Sixes = text(spans.Eq(3))
			p.StrikeRate = text(spans.Eq(5))
		}

		p.OnStrike = b.Find("div.circle-strike-icon").Length() > 0

		stats.Batting = append(stats.Batting, p)
		if p.OnStrike {
			cp := p
			stats.Striker = &cp
		}
	})

	// Next two blocks are the bowlers.
	if blocks.Length() > 2 {
		blocks.Slice(2, min(4, blocks.Length())).Each(func(_ int, b *goquery.Selection) {
			p := Player{
				Name:    text(b.Find("div.batsmen-name")),
				Wickets: "0",
				Economy: NA,
			}
			parts := strings.Fields(text(b.Find("div.batsmen-score")))
			figures := "0-0"
			if len(parts) > 0 {
				figures = parts[0]
			}
			if len(parts) > 1 {
				p.Overs = strings.Trim(parts[1], "()")
			}
			if w, r, ok := strings.Cut(figures, "-"); ok {
				p.Wickets, p.RunsConceded = w, r
			} else {
				p.Wickets, p.RunsConceded = "0", "0"
			}

			b.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if strings.Contains(s.Text(), "Econ:") && text(s.Next()) != "" {
					p.Economy = text(s.Next())
					return false
				}
				return true
			})

			stats.Bowling = append(stats.Bowling, p)
		})
	}

	return stats
}

func parseMatchOdds(doc *goquery.Document) *OddsSnapshot {
	odds := &OddsSnapshot{
		WinProbabilities: map[string]string{},
		Odds:             map[string][]string{},
	}

	// Win probabilities.
	prob := doc.Find("div.progressBarWrapper")
	if prob.Length() > 0 {
		teams := prob.Find("div.teamName")
		if teams.Length() >= 2 {
			for i := 0; i < 2; i++ {
				t := teams.Eq(i)
				name := text(t.Find("div").First())
				val := text(t.Find("div").Last())
				if name != "" {
					odds.WinProbabilities[name] = val
				}
			}
		}
	}

	// Session odds.
	session := doc.Find("div.oddSessionInProgress")
	if session.Length() > 0 {
		divs := session.First().Find("div")
		if divs.Length() >= 2 {
			name := text(divs.Eq(0))
			var vals []string
			divs.Slice(1, divs.Length()).Each(func(_ int, d *goquery.Selection) {
				vals = append(vals, text(d))
			})
			odds.Odds[name] = vals
		}
	}

	// Over projections.
	doc.Find("div.displayFlex").Each(func(_ int, p *goquery.Selection) {
		title := p.Find("div.overRunText")
		if title.Length() == 0 {
			return
		}
		yn := p.Find("div.yes-no-odds")
		if yn.Length() == 0 {
			return
		}
		no := yn.Find("div.no")
		yes := yn.Find("div.yes")
		if no.Length() == 0 || yes.Length() == 0 {
			return
		}
		odds.OverProjections = append(odds.OverProjections, OverProjection{
			Title:   text(title.First()),
			YesOdds: textOr(yes.Find("span").Last(), NA),
			NoOdds:  textOr(no.Find("span").Last(), NA),
		})
	})

	return odds
}
