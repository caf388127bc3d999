package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sessionvault/legacymigrate/internal/textutil"
)

// SearchKind says which table a search hit came from.
type SearchKind string

const (
	HitProfile     SearchKind = "profile"
	HitClosedGroup SearchKind = "closedGroup"
	HitOpenGroup   SearchKind = "openGroup"
	HitInteraction SearchKind = "interaction"
)

// SearchHit is one search result.
type SearchHit struct {
	Kind SearchKind
	// ID is the profile id, the group's thread id, or the interaction id.
	ID       string
	ThreadID string
	Text     string
}

type searchSource struct {
	kind     SearchKind
	index    string
	table    string
	idExpr   string
	threadEx string
	column   string
}

var searchSources = []searchSource{
	{HitProfile, "profile_fts", "profile", "t.id", "''", "name"},
	{HitClosedGroup, "closed_group_fts", "closed_group", "t.thread_id", "t.thread_id", "name"},
	{HitOpenGroup, "open_group_fts", "open_group", "t.thread_id", "t.thread_id", "name"},
	{HitInteraction, "interaction_fts", "interaction", "CAST(t.id AS TEXT)", "t.thread_id", "body"},
}

// Search finds profiles, groups and messages matching every term of query.
// Matching ignores case and diacritics. At most limit hits are returned per
// kind.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	terms := strings.Fields(textutil.FoldForSearch(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var hits []SearchHit
	for _, src := range searchSources {
		var found []SearchHit
		var err error
		if s.fts5Available {
			found, err = s.searchFTS(ctx, src, terms, limit)
		} else {
			found, err = s.searchLike(ctx, src, terms, limit)
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, found...)
	}
	return hits, nil
}

// ftsMatchExpr quotes each term as an FTS5 string with prefix matching so
// user input can never be parsed as query syntax.
func ftsMatchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(quoted, " ")
}

func (s *Store) searchFTS(ctx context.Context, src searchSource, terms []string, limit int) ([]SearchHit, error) {
	q := fmt.Sprintf(`
		SELECT %s, %s, COALESCE(t.%s, '')
		FROM %s f JOIN %s t ON t.rowid = f.rowid
		WHERE f MATCH ?
		ORDER BY bm25(f)
		LIMIT ?`,
		src.idExpr, src.threadEx, src.column,
		src.index, src.table)
	return s.collectHits(ctx, src.kind, q, ftsMatchExpr(terms), limit)
}

func (s *Store) searchLike(ctx context.Context, src searchSource, terms []string, limit int) ([]SearchHit, error) {
	conds := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		conds[i] = fmt.Sprintf(`t.%s LIKE ? ESCAPE '\'`, src.column)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	args = append(args, limit)
	q := fmt.Sprintf(`
		SELECT %s, %s, COALESCE(t.%s, '')
		FROM %s t
		WHERE %s
		ORDER BY t.rowid
		LIMIT ?`,
		src.idExpr, src.threadEx, src.column,
		src.table,
		strings.Join(conds, " AND "))
	return s.collectHits(ctx, src.kind, q, args...)
}

func (s *Store) collectHits(ctx context.Context, kind SearchKind, query string, args ...any) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		h := SearchHit{Kind: kind}
		if err := rows.Scan(&h.ID, &h.ThreadID, &h.Text); err != nil {
			return nil, fmt.Errorf("scan %s hit: %w", kind, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
