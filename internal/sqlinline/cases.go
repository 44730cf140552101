package sqlinline

const QInsertCase = `--sql 0e1042d4-e7f6-46ec-b915-730486d270fd
INSERT INTO cases (id, patient, base_prompt, ehr_files, ct_scans)
VALUES ($1::uuid, $2::jsonb, $3, $4::jsonb, $5::jsonb)
RETURNING id::text, created_at, updated_at, patient, base_prompt, generated_prompt,
          ehr_files, ct_scans, images, video_url;
`

const QGetCase = `--sql 3adbce70-8dd2-4004-bfef-f80ec352a440
SELECT id::text, created_at, updated_at, patient, base_prompt, generated_prompt,
       ehr_files, ct_scans, images, video_url
FROM cases
WHERE id = $1::uuid;
`

const QListCases = `--sql f67ba9b6-a8bd-47f8-a64d-a748c24a2d1d
SELECT id::text, created_at, updated_at, patient, base_prompt, generated_prompt,
       ehr_files, ct_scans, images, video_url
FROM cases
ORDER BY created_at DESC
LIMIT $1;
`

const QUpdateCasePrompt = `--sql 6d067dc3-cb0c-4fed-ba40-842292ae41d8
UPDATE cases
SET generated_prompt = $2,
    ehr_files = CASE WHEN jsonb_array_length($3::jsonb) > 0 THEN $3::jsonb ELSE ehr_files END,
    ct_scans = CASE WHEN jsonb_array_length($4::jsonb) > 0 THEN $4::jsonb ELSE ct_scans END,
    updated_at = now()
WHERE id = $1::uuid;
`

const QMergeCaseImages = `--sql b929383f-c9c4-4368-b6fc-bcb25cfc65bc
UPDATE cases
SET images = images || $2::jsonb, updated_at = now()
WHERE id = $1::uuid;
`

const QUpdateCaseVideo = `--sql d36f41fe-d9bf-4455-99ca-9a29c826a420
UPDATE cases
SET video_url = $2, updated_at = now()
WHERE id = $1::uuid;
`
